package analysiserrors

import "time"

// AnalysisError represents a persisted invocation-failure entry
type AnalysisError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	DiagnosisID string    `json:"diagnosis_id"`
	Kind        string    `json:"kind"` // authorization | transient | unclassified
	Attempts    int       `json:"attempts"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}
