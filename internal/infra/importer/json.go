package importer

import (
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/cases"
)

// jsonRows requires the document to be an array of row objects.
func jsonRows(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: JSON must be an array of objects: %v", cases.ErrUnsupportedFormat, err)
	}
	return rows, nil
}
