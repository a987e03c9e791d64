package analysiserrors

import (
	"context"
)

// Repository defines persistence for invocation failures
type Repository interface {
	Save(ctx context.Context, e *AnalysisError) error
	ListByDiagnosis(ctx context.Context, tenant string, diagnosisID string, limit int) ([]*AnalysisError, error)
}
