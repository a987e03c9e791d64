package diagnosis

import "context"

// Repository port for persisting and querying diagnoses
type Repository interface {
	Save(ctx context.Context, d *Diagnosis) error
	Get(ctx context.Context, tenant string, id DiagnosisID) (*Diagnosis, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Diagnosis, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Diagnosis, error)
}

// PhotoStore port (penyimpanan foto yang dikirim teknisi)
type PhotoStore interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
