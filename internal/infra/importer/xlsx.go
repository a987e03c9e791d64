package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/cases"
)

// xlsxRows reads the first sheet only; the header row becomes the keys.
func xlsxRows(data []byte) ([]map[string]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cases.ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", cases.ErrUnsupportedFormat)
	}

	raw, err := f.GetRows(sheets[0])
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
			if h == "" {
				continue
			}
			// GetRows memotong trailing cell kosong, jadi cek bound dulu
			if i < len(cells) {
				row[h] = cells[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
