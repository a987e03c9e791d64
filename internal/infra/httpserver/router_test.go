package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/teknisi-ai/internal/application"
	appcases "github.com/bryanwahyu/teknisi-ai/internal/application/cases"
	appdiag "github.com/bryanwahyu/teknisi-ai/internal/application/diagnosis"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/diagnosis"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/importer"
	"github.com/bryanwahyu/teknisi-ai/internal/middleware"
)

type stubAI struct {
	result  *ai.AnalysisResult
	err     error
	lastReq ai.AnalysisRequest
}

func (s *stubAI) Analyze(ctx context.Context, req ai.AnalysisRequest) (*ai.AnalysisResult, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestRouter(client ai.Client) (http.Handler, *appcases.Service) {
	casesSvc := appcases.NewService(importer.Loader{})
	diagSvc := &appdiag.Service{
		AI:    client,
		Cases: casesSvc,
		Clock: application.SystemClock{},
	}
	return NewRouter(casesSvc, diagSvc, nil), casesSvc
}

func multipartFile(t *testing.T, field, filename, contentType string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestImportEndpoint(t *testing.T) {
	router, casesSvc := newTestRouter(&stubAI{})

	t.Run("json archive imported", func(t *testing.T) {
		body, ct := multipartFile(t, "file", "cases.json", "application/json",
			[]byte(`[{"perangkat":"TV","kerusakan":"mati total","solusi":"ganti psu"}]`), nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/cases/import", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res appcases.ImportResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 1, res.Imported)
		assert.Equal(t, 1, casesSvc.Count())
	})

	t.Run("unsupported extension maps to 400", func(t *testing.T) {
		body, ct := multipartFile(t, "file", "cases.pdf", "application/pdf", []byte("x"), nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/cases/import", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("archive without usable rows maps to 422", func(t *testing.T) {
		body, ct := multipartFile(t, "file", "cases.json", "application/json",
			[]byte(`[{"perangkat":"TV"}]`), nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/cases/import", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("invalid tenant rejected", func(t *testing.T) {
		body, ct := multipartFile(t, "file", "cases.json", "application/json", []byte(`[]`), nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/bad%20tenant/cases/import", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Run("returns summary blocks and citations", func(t *testing.T) {
		stub := &stubAI{result: &ai.AnalysisResult{
			SummaryText: "## Penyebab\n- **Sekring**: putus",
			Citations:   []ai.Citation{{URI: "https://example.com", Title: "Fuse"}},
			Model:       "gemini-2.5-flash",
		}}
		router, _ := newTestRouter(stub)

		body, ct := multipartFile(t, "photos", "photo.jpg", "image/jpeg",
			[]byte{0xFF, 0xD8}, map[string]string{"description": "psu mati total"})

		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/diagnosis/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res appdiag.AnalyzeResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Len(t, res.Blocks, 2)
		assert.Len(t, res.Citations, 1)

		// photo reached the client request
		require.Len(t, stub.lastReq.Images, 1)
		assert.Equal(t, "image/jpeg", stub.lastReq.Images[0].MediaType)
		assert.Equal(t, "psu mati total", stub.lastReq.Description)
	})

	t.Run("missing description rejected", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{result: &ai.AnalysisResult{}})

		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/diagnosis/analyze", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("authorization failure maps to 401", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{err: ai.ErrAuthorization})

		body, ct := multipartFile(t, "photos", "p.png", "image/png",
			[]byte{1}, map[string]string{"description": "x"})
		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/diagnosis/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("exhausted retries map to 503", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{err: ai.ErrMaxRetries})

		body, ct := multipartFile(t, "photos", "p.png", "image/png",
			[]byte{1}, map[string]string{"description": "x"})
		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/diagnosis/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("unsupported photo type rejected", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{result: &ai.AnalysisResult{}})

		body, ct := multipartFile(t, "photos", "p.tiff", "image/tiff",
			[]byte{1}, map[string]string{"description": "x"})
		req := httptest.NewRequest(http.MethodPost, "/v1/bengkel-1/diagnosis/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDiagnosisReadEndpoints(t *testing.T) {
	t.Run("current is 404 before first analysis", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{})
		req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-1/diagnosis/current", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("latest without a database is 404", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{})
		req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-1/diagnosis/latest", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get rejects malformed id", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{})
		req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-1/diagnosis/not-a-uuid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// pagedRepo records the pagination arguments the handler passes down.
type pagedRepo struct {
	page     int
	pageSize int
	list     []*domain.Diagnosis
}

func (p *pagedRepo) Save(ctx context.Context, d *domain.Diagnosis) error { return nil }

func (p *pagedRepo) Get(ctx context.Context, tenant string, id domain.DiagnosisID) (*domain.Diagnosis, error) {
	return nil, sql.ErrNoRows
}

func (p *pagedRepo) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Diagnosis, error) {
	return p.list, nil
}

func (p *pagedRepo) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Diagnosis, error) {
	p.page = page
	p.pageSize = pageSize
	return p.list, nil
}

func TestHistoryEndpoint(t *testing.T) {
	t.Run("passes page and clamped size to the repository", func(t *testing.T) {
		repo := &pagedRepo{list: []*domain.Diagnosis{{ID: "d1"}, {ID: "d2"}}}
		casesSvc := appcases.NewService(importer.Loader{})
		diagSvc := &appdiag.Service{AI: &stubAI{}, Cases: casesSvc, Repo: repo, Clock: application.SystemClock{}}
		router := NewRouter(casesSvc, diagSvc, nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-1/diagnosis/history?page=2&page_size=500", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 2, repo.page)
		assert.Equal(t, 100, repo.pageSize)

		var res struct {
			Page      int                 `json:"page"`
			Diagnoses []*domain.Diagnosis `json:"diagnoses"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, 2, res.Page)
		assert.Len(t, res.Diagnoses, 2)
	})

	t.Run("without a database is 404", func(t *testing.T) {
		router, _ := newTestRouter(&stubAI{})
		req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-1/diagnosis/history", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTenantScopedAuth(t *testing.T) {
	router, _ := newTestRouter(&stubAI{})
	authed := middleware.APIKeyAuth(map[string]string{"bengkel-1": "secret"})(router)

	t.Run("key of another tenant is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-2/cases", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		authed.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("matching tenant passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-1/cases", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		authed.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestListCasesEndpoint(t *testing.T) {
	router, casesSvc := newTestRouter(&stubAI{})
	_, err := casesSvc.Import("cases.json", []byte(`[{"kerusakan":"rusak"}]`))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/bengkel-1/cases", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(&stubAI{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
