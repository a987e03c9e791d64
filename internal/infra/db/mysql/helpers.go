package mysql

import "strings"

// stringOrDash returns "-" when the input is empty/whitespace.
// Audit columns (tenant_id, kind) stay filterable that way.
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
