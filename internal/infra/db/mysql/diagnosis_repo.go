package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/diagnosis"
)

type DiagnosisRepository struct {
	db *sql.DB
}

func NewDiagnosisRepository(db *sql.DB) *DiagnosisRepository {
	return &DiagnosisRepository{db: db}
}

// Save inserts or updates a diagnosis record
func (r *DiagnosisRepository) Save(ctx context.Context, d *domain.Diagnosis) error {
	const q = `
INSERT INTO repair_diagnoses
  (id, tenant_id, description, summary_text, citations_json, image_urls_json,
   model, status, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  summary_text=VALUES(summary_text), citations_json=VALUES(citations_json),
  image_urls_json=VALUES(image_urls_json), model=VALUES(model),
  status=VALUES(status), duration_ms=VALUES(duration_ms);
`
	tenant := stringOrDash(d.TenantID)
	status := stringOrDash(string(d.Status))
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	citations, err := marshalJSON(d.Citations)
	if err != nil {
		return err
	}
	imageURLs, err := marshalJSON(d.ImageURLs)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, q,
		d.ID, tenant, d.Description, d.SummaryText, citations, imageURLs,
		d.Model, status, d.DurationMS, createdAt,
	)
	return err
}

// Get by ID + Tenant
func (r *DiagnosisRepository) Get(ctx context.Context, tenant string, id domain.DiagnosisID) (*domain.Diagnosis, error) {
	const q = `
SELECT id, tenant_id, description, summary_text, citations_json, image_urls_json,
       model, status, duration_ms, created_at
FROM repair_diagnoses
WHERE tenant_id=? AND id=? LIMIT 1;
`
	return scanDiagnosis(r.db.QueryRowContext(ctx, q, tenant, id))
}

// Latest diagnoses per tenant
func (r *DiagnosisRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Diagnosis, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, description, summary_text, citations_json, image_urls_json,
       model, status, duration_ms, created_at
FROM repair_diagnoses
WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDiagnoses(rows)
}

// Paginate with offset + limit (classic pagination)
func (r *DiagnosisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Diagnosis, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, tenant_id, description, summary_text, citations_json, image_urls_json,
       model, status, duration_ms, created_at
FROM repair_diagnoses
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDiagnoses(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiagnosis(row rowScanner) (*domain.Diagnosis, error) {
	var d domain.Diagnosis
	var citations, imageURLs string
	var created time.Time
	if err := row.Scan(
		&d.ID, &d.TenantID, &d.Description, &d.SummaryText, &citations, &imageURLs,
		&d.Model, &d.Status, &d.DurationMS, &created,
	); err != nil {
		return nil, err
	}
	d.CreatedAt = created
	if err := unmarshalJSON(citations, &d.Citations); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(imageURLs, &d.ImageURLs); err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDiagnoses(rows *sql.Rows) ([]*domain.Diagnosis, error) {
	var out []*domain.Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// marshalJSON renders slices as JSON for the *_json columns; nil becomes [].
func marshalJSON(v any) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(b)
	if s == "null" {
		s = "[]"
	}
	return s, nil
}

func unmarshalJSON[T any](s string, dest *T) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dest)
}
