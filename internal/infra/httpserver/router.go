package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appcases "github.com/bryanwahyu/teknisi-ai/internal/application/cases"
	appdiag "github.com/bryanwahyu/teknisi-ai/internal/application/diagnosis"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	domcases "github.com/bryanwahyu/teknisi-ai/internal/domain/cases"
	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/diagnosis"
	"github.com/bryanwahyu/teknisi-ai/internal/middleware"
	"github.com/bryanwahyu/teknisi-ai/internal/render"
)

// errBadRequest marks request-shape problems the client must fix.
var errBadRequest = errors.New("bad request")

// Upload ceilings; photos beyond this are a client error, not a crash.
const (
	maxImportSize   = 16 << 20 // 16 MiB archive file
	maxAnalyzeSize  = 32 << 20 // description + photos
	maxPhotosPerReq = 6
)

type Router struct {
	casesSvc *appcases.Service
	diagSvc  *appdiag.Service
}

func NewRouter(casesSvc *appcases.Service, diagSvc *appdiag.Service, allowedOrigins []string) http.Handler {
	r := &Router{casesSvc: casesSvc, diagSvc: diagSvc}
	mux := chi.NewRouter()

	// frontend jalan di browser, jadi CORS wajib
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(requireValidTenant)
		rt.Post("/cases/import", r.wrap(r.handleImportCases))
		rt.Get("/cases", r.wrap(r.handleListCases))
		rt.Post("/diagnosis/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/diagnosis/current", r.wrap(r.handleCurrent))
		rt.Get("/diagnosis/latest", r.wrap(r.handleLatest))
		rt.Get("/diagnosis/history", r.wrap(r.handleHistory))
		rt.Get("/diagnosis/{id}", r.wrap(r.handleGet))
	})

	return mux
}

func requireValidTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tenant := chi.URLParam(req, "tenant")
		if err := middleware.ValidateTenantID(tenant); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// kalau auth aktif, API key tenant A tidak boleh akses path tenant B
		if authed := middleware.GetTenantFromContext(req.Context()); authed != "" && authed != tenant {
			http.Error(w, "api key does not belong to this tenant", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domcases.ErrUnsupportedFormat), errors.Is(err, errBadRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domcases.ErrNoValidRecords):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, ai.ErrAuthorization):
				http.Error(w, "ai authorization failed, check credential", http.StatusUnauthorized)
			case errors.Is(err, ai.ErrMaxRetries):
				http.Error(w, "ai service unavailable, retries exhausted", http.StatusServiceUnavailable)
			case errors.Is(err, appdiag.ErrHistoryDisabled):
				http.Error(w, err.Error(), http.StatusNotFound)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// POST /v1/{tenant}/cases/import
// multipart form: file=<archive .json|.xlsx|.csv>
func (r *Router) handleImportCases(w http.ResponseWriter, req *http.Request) error {
	if err := req.ParseMultipartForm(maxImportSize); err != nil {
		return fmt.Errorf("%w: %v", domcases.ErrUnsupportedFormat, err)
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: missing file field", domcases.ErrUnsupportedFormat)
	}
	defer file.Close()

	if err := middleware.ValidateImportExtension(header.Filename); err != nil {
		return fmt.Errorf("%w: %v", domcases.ErrUnsupportedFormat, err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	result, err := r.casesSvc.Import(header.Filename, data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(result)
}

// GET /v1/{tenant}/cases
func (r *Router) handleListCases(w http.ResponseWriter, req *http.Request) error {
	records := r.casesSvc.Records()
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// POST /v1/{tenant}/diagnosis/analyze
// multipart form: description=<text>, photos=<0..n image files>
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := req.ParseMultipartForm(maxAnalyzeSize); err != nil {
		return fmt.Errorf("invalid multipart form: %w", err)
	}

	description := middleware.SanitizeString(req.FormValue("description"))
	if description == "" {
		return fmt.Errorf("%w: description is required", errBadRequest)
	}

	images, err := readPhotos(req)
	if err != nil {
		return err
	}

	middleware.IncrementAnalyses()
	middleware.IncrementAnalysesRunning()
	out, err := r.diagSvc.Analyze(req.Context(), appdiag.AnalyzeCommand{
		TenantID:    tenant,
		Description: description,
		Images:      images,
	})
	middleware.DecrementAnalysesRunning()
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}

// readPhotos collects uploaded photos in form order; order is preserved all
// the way into the outbound request.
func readPhotos(req *http.Request) ([]ai.ImagePart, error) {
	if req.MultipartForm == nil {
		return nil, nil
	}
	files := req.MultipartForm.File["photos"]
	if len(files) > maxPhotosPerReq {
		return nil, fmt.Errorf("%w: too many photos, max %d", errBadRequest, maxPhotosPerReq)
	}

	images := make([]ai.ImagePart, 0, len(files))
	for _, fh := range files {
		mediaType := fh.Header.Get("Content-Type")
		if err := middleware.ValidateImageMediaType(mediaType); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, ai.ImagePart{Data: data, MediaType: mediaType})
	}
	return images, nil
}

// GET /v1/{tenant}/diagnosis/current
func (r *Router) handleCurrent(w http.ResponseWriter, req *http.Request) error {
	current := r.diagSvc.Current()
	if current == nil {
		http.Error(w, "no diagnosis yet", http.StatusNotFound)
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(current)
}

// GET /v1/{tenant}/diagnosis/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.diagSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/diagnosis/history?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.diagSvc.Paginate(req.Context(), tenant, page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"page":      max(page, 1),
		"diagnoses": list,
	})
}

// GET /v1/{tenant}/diagnosis/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateDiagnosisID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	d, err := r.diagSvc.Get(req.Context(), tenant, domain.DiagnosisID(id))
	if err != nil {
		return err
	}

	// blocks dirender ulang dari summary yang tersimpan
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"diagnosis": d,
		"blocks":    render.Render(d.SummaryText),
	})
}
