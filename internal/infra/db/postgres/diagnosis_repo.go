package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/diagnosis"
)

type DiagnosisRepository struct {
	db *sql.DB
}

func NewDiagnosisRepository(db *sql.DB) *DiagnosisRepository {
	return &DiagnosisRepository{db: db}
}

// Connect opens a Postgres pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

// Save inserts or updates a diagnosis record
func (r *DiagnosisRepository) Save(ctx context.Context, d *domain.Diagnosis) error {
	const q = `
INSERT INTO repair_diagnoses
  (id, tenant_id, description, summary_text, citations_json, image_urls_json,
   model, status, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  summary_text=EXCLUDED.summary_text,
  citations_json=EXCLUDED.citations_json,
  image_urls_json=EXCLUDED.image_urls_json,
  model=EXCLUDED.model,
  status=EXCLUDED.status,
  duration_ms=EXCLUDED.duration_ms;
`
	tenant := d.TenantID
	if strings.TrimSpace(tenant) == "" {
		tenant = "-"
	}
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	citations, err := json.Marshal(d.Citations)
	if err != nil {
		return err
	}
	imageURLs, err := json.Marshal(d.ImageURLs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q,
		d.ID, tenant, d.Description, d.SummaryText, string(citations), string(imageURLs),
		d.Model, string(d.Status), d.DurationMS, createdAt,
	)
	return err
}

// Get by ID + Tenant
func (r *DiagnosisRepository) Get(ctx context.Context, tenant string, id domain.DiagnosisID) (*domain.Diagnosis, error) {
	const q = `
SELECT id, tenant_id, description, summary_text, citations_json, image_urls_json,
       model, status, duration_ms, created_at
FROM repair_diagnoses
WHERE tenant_id=$1 AND id=$2 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)
	return scanDiagnosis(row)
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
WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Paginate returns a page ordered by created_at desc
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
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDiagnosis(row scanner) (*domain.Diagnosis, error) {
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
	if strings.TrimSpace(citations) != "" {
		if err := json.Unmarshal([]byte(citations), &d.Citations); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(imageURLs) != "" {
		if err := json.Unmarshal([]byte(imageURLs), &d.ImageURLs); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func collect(rows *sql.Rows) ([]*domain.Diagnosis, error) {
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
