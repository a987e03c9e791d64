package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/analysiserrors"
)

type AnalysisErrorRepository struct {
	db *sql.DB
}

func NewAnalysisErrorRepository(db *sql.DB) *AnalysisErrorRepository {
	return &AnalysisErrorRepository{db: db}
}

// Save inserts one invocation-failure entry
func (r *AnalysisErrorRepository) Save(ctx context.Context, e *domain.AnalysisError) error {
	const q = `
INSERT INTO analysis_errors
  (tenant_id, diagnosis_id, kind, attempts, message, created_at)
VALUES (?,?,?,?,?,?);
`
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.TenantID), e.DiagnosisID, stringOrDash(e.Kind),
		e.Attempts, e.Message, createdAt,
	)
	return err
}

// ListByDiagnosis returns failure entries for one diagnosis, newest first
func (r *AnalysisErrorRepository) ListByDiagnosis(ctx context.Context, tenant string, diagnosisID string, limit int) ([]*domain.AnalysisError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, diagnosis_id, kind, attempts, message, created_at
FROM analysis_errors
WHERE tenant_id=? AND diagnosis_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, diagnosisID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AnalysisError
	for rows.Next() {
		var e domain.AnalysisError
		var created time.Time
		if err := rows.Scan(&e.ID, &e.TenantID, &e.DiagnosisID, &e.Kind, &e.Attempts, &e.Message, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = created
		out = append(out, &e)
	}
	return out, rows.Err()
}
