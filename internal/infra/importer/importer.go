// Package importer parses uploaded case-archive files into loosely-typed
// rows. Normalization into CaseRecords happens in the domain layer; nothing
// untyped flows past it.
package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/cases"
)

// Loader implements the cases.Loader port.
type Loader struct{}

func (Loader) Rows(filename string, data []byte) ([]map[string]any, error) {
	return Rows(filename, data)
}

// Rows parses the uploaded file by extension. Unsupported extensions surface
// cases.ErrUnsupportedFormat; parse failures are wrapped in the same sentinel
// so the caller can map both to a user-visible import error.
func Rows(filename string, data []byte) ([]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return jsonRows(data)
	case ".xlsx":
		return xlsxRows(data)
	case ".csv":
		return csvRows(data)
	default:
		return nil, fmt.Errorf("%w: %s", cases.ErrUnsupportedFormat, filepath.Ext(filename))
	}
}
