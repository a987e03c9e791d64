package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bryanwahyu/teknisi-ai/internal/application"
	appcases "github.com/bryanwahyu/teknisi-ai/internal/application/cases"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/analysiserrors"
	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/diagnosis"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/ai/prompt"
	"github.com/bryanwahyu/teknisi-ai/internal/render"
)

// Service implements the analyze use-case. AI is expected to be the
// retry-wrapped client. Repo, ErrorLog and Photos are optional; when nil the
// service runs stateless (no history, no error audit, no photo storage).
type Service struct {
	AI       ai.Client
	Cases    *appcases.Service
	Repo     domain.Repository
	ErrorLog analysiserrors.Repository
	Photos   domain.PhotoStore
	Clock    application.Clock

	// submission token naik monoton; hasil stale dibuang (last-submitted-wins)
	submission atomic.Uint64

	mu           sync.Mutex
	currentToken uint64
	current      *AnalyzeResult
}

// AnalyzeCommand is one technician submission.
type AnalyzeCommand struct {
	TenantID    string
	Description string
	Images      []ai.ImagePart
}

// AnalyzeResult is the outcome returned to the caller.
type AnalyzeResult struct {
	ID          string         `json:"id"`
	SummaryText string         `json:"summary_text"`
	Citations   []ai.Citation  `json:"citations,omitempty"`
	Blocks      []render.Block `json:"blocks"`
	ImageURLs   []string       `json:"image_urls,omitempty"`
	Model       string         `json:"model,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Stale       bool           `json:"stale,omitempty"`
}

// Analyze assembles the request from the command plus the current working
// set, executes it through the retry-wrapped client, and renders the summary
// into display blocks. A submission that finishes after a newer one started
// is marked stale and never overwrites the current result.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (*AnalyzeResult, error) {
	token := s.submission.Add(1)
	started := s.Clock.Now()
	id := uuid.New().String()

	req := prompt.Assemble(cmd.Description, cmd.Images, s.Cases.Records())

	result, err := s.AI.Analyze(ctx, req)
	duration := s.Clock.Now().Sub(started).Milliseconds()
	if err != nil {
		s.recordFailure(cmd.TenantID, id, err)
		return nil, err
	}

	out := &AnalyzeResult{
		ID:          id,
		SummaryText: result.SummaryText,
		Citations:   result.Citations,
		Blocks:      render.Render(result.SummaryText),
		Model:       result.Model,
		DurationMS:  duration,
	}
	out.ImageURLs = s.uploadPhotos(ctx, cmd, id)

	s.mu.Lock()
	if token >= s.currentToken {
		s.currentToken = token
		s.current = out
	} else {
		out.Stale = true
	}
	s.mu.Unlock()

	if !out.Stale && s.Repo != nil {
		d := &domain.Diagnosis{
			ID:          domain.DiagnosisID(id),
			TenantID:    cmd.TenantID,
			Description: cmd.Description,
			SummaryText: result.SummaryText,
			Citations:   result.Citations,
			ImageURLs:   out.ImageURLs,
			Model:       result.Model,
			Status:      domain.StatusSuccess,
			DurationMS:  duration,
			CreatedAt:   started,
		}
		if err := s.Repo.Save(ctx, d); err != nil {
			// history is best-effort; hasil analisa tetap dikembalikan
			log.Printf("diagnosis save failed tenant=%s id=%s err=%v", cmd.TenantID, id, err)
		}
	}

	return out, nil
}

// Current returns the most recent non-stale result for the session, or nil.
func (s *Service) Current() *AnalyzeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Latest returns recent stored diagnoses.
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Diagnosis, error) {
	if s.Repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Repo.Latest(ctx, tenant, limit)
}

// Paginate returns one page of stored diagnoses, newest first.
func (s *Service) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Diagnosis, error) {
	if s.Repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// Get returns one stored diagnosis by id.
func (s *Service) Get(ctx context.Context, tenant string, id domain.DiagnosisID) (*domain.Diagnosis, error) {
	if s.Repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.Repo.Get(ctx, tenant, id)
}

func (s *Service) recordFailure(tenant, id string, cause error) {
	if s.ErrorLog == nil {
		return
	}
	kind := ai.FailureUnclassified
	attempts := 1
	var inv *ai.InvocationError
	switch {
	case errors.As(cause, &inv):
		// invoker sudah tahu klasifikasi dan jumlah attempt-nya
		kind = inv.Kind
		attempts = inv.Attempts
	case errors.Is(cause, ai.ErrAuthorization):
		kind = ai.FailureAuthorization
	case errors.Is(cause, ai.ErrMaxRetries), errors.Is(cause, ai.ErrTransient):
		kind = ai.FailureTransient
	default:
		kind = ai.Classify(ai.DefaultClassifierConfig(), cause)
	}
	e := &analysiserrors.AnalysisError{
		TenantID:    tenant,
		DiagnosisID: id,
		Kind:        string(kind),
		Message:     cause.Error(),
		Attempts:    attempts,
		CreatedAt:   s.Clock.Now(),
	}
	// audit log pakai context.Background supaya tetap tersimpan walau
	// request-nya sudah dibatalkan
	if err := s.ErrorLog.Save(context.Background(), e); err != nil {
		log.Printf("analysis error save failed tenant=%s id=%s err=%v", tenant, id, err)
	}
}

// uploadPhotos stores submitted photos when a store is configured. Upload
// failures only lose the stored copy, never the analysis.
func (s *Service) uploadPhotos(ctx context.Context, cmd AnalyzeCommand, id string) []string {
	if s.Photos == nil || len(cmd.Images) == 0 {
		return nil
	}
	urls := make([]string, 0, len(cmd.Images))
	for i, img := range cmd.Images {
		key := fmt.Sprintf("%s/%s/photo-%d%s", cmd.TenantID, id, i+1, extFor(img.MediaType))
		url, err := s.Photos.UploadBytes(ctx, key, img.Data, img.MediaType)
		if err != nil {
			log.Printf("photo upload failed tenant=%s id=%s key=%s err=%v", cmd.TenantID, id, key, err)
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func extFor(mediaType string) string {
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}
