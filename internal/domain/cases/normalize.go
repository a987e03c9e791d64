package cases

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Alias kolom per field, urut prioritas. Cocokkan case-insensitive,
// vocab teknis Inggris + istilah lokal yang biasa dipakai teknisi.
var (
	deviceAliases = []string{
		"name", "device", "device_name",
		"perangkat", "nama", "nama_perangkat", "alat", "barang",
	}
	categoryAliases = []string{
		"category", "type",
		"kategori", "jenis", "tipe",
	}
	faultAliases = []string{
		"description", "fault", "problem", "issue", "symptom",
		"kerusakan", "keluhan", "masalah", "deskripsi", "gejala",
	}
	solutionAliases = []string{
		"solution", "fix", "repair", "remedy",
		"solusi", "perbaikan", "penanganan",
	}
)

// Normalize converts loosely-typed rows (arbitrary key names) into CaseRecords.
// Rows without a resolvable non-empty fault description are skipped silently;
// that is a record-level skip, not an error. IDs are generated fresh per batch.
func Normalize(rows []map[string]any) []CaseRecord {
	out := make([]CaseRecord, 0, len(rows))
	for _, row := range rows {
		fault := resolveField(row, faultAliases)
		if fault == "" {
			continue
		}

		rec := CaseRecord{
			ID:               CaseID(uuid.New().String()),
			DeviceName:       resolveField(row, deviceAliases),
			Category:         resolveField(row, categoryAliases),
			FaultDescription: fault,
			SolutionText:     resolveField(row, solutionAliases),
		}
		if rec.DeviceName == "" {
			rec.DeviceName = UnknownDevice
		}
		if rec.Category == "" {
			rec.Category = DefaultCategory
		}
		out = append(out, rec)
	}
	return out
}

// resolveField scans the prioritized alias list; first case-insensitive key
// match with a non-empty coerced value wins.
func resolveField(row map[string]any, aliases []string) string {
	for _, alias := range aliases {
		for key, val := range row {
			if !strings.EqualFold(strings.TrimSpace(key), alias) {
				continue
			}
			if s := coerceString(val); s != "" {
				return s
			}
		}
	}
	return ""
}

// coerceString converts arbitrary cell values to trimmed strings.
// Angka bulat dirender tanpa desimal (excel suka kasih float64).
func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
