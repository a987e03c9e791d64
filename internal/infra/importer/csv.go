package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/cases"
)

// csvRows treats the first line as the header row.
func csvRows(data []byte) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	raw, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cases.ErrUnsupportedFormat, err)
	}
	if len(raw) == 0 {
		return []map[string]any{}, nil
	}

	headers := raw[0]
	rows := make([]map[string]any, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := make(map[string]any, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(cells) {
				continue
			}
			row[h] = cells[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
