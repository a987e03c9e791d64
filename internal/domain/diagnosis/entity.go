package diagnosis

import (
	"time"

	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
)

// DiagnosisID identifier type
type DiagnosisID string

// Status enum
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Diagnosis represents a completed AI repair recommendation stored for
// auditing and retrieval. Imported case records are deliberately NOT part of
// this aggregate; they live in memory only for the session.
type Diagnosis struct {
	ID          DiagnosisID   `json:"id"`
	TenantID    string        `json:"tenant_id"`
	Description string        `json:"description"`
	SummaryText string        `json:"summary_text"`
	Citations   []ai.Citation `json:"citations,omitempty"`
	ImageURLs   []string      `json:"image_urls,omitempty"`
	Model       string        `json:"model,omitempty"`
	Status      Status        `json:"status"`
	DurationMS  int64         `json:"duration_ms"`
	CreatedAt   time.Time     `json:"created_at"`
}
