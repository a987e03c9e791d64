package diagnosis

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/teknisi-ai/internal/application"
	appcases "github.com/bryanwahyu/teknisi-ai/internal/application/cases"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/ai"
	"github.com/bryanwahyu/teknisi-ai/internal/domain/analysiserrors"
	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/diagnosis"
	"github.com/bryanwahyu/teknisi-ai/internal/infra/ai/retry"
)

// gatedAI blocks each Analyze call until released, so tests can interleave
// overlapping submissions deterministically.
type gatedAI struct {
	mu      sync.Mutex
	started chan string
	release map[string]chan struct{}
	results map[string]*ai.AnalysisResult
	err     error
}

func newGatedAI() *gatedAI {
	return &gatedAI{
		started: make(chan string, 8),
		release: make(map[string]chan struct{}),
		results: make(map[string]*ai.AnalysisResult),
	}
}

func (g *gatedAI) expect(desc string, res *ai.AnalysisResult) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.release[desc] = ch
	g.results[desc] = res
	return ch
}

func (g *gatedAI) Analyze(ctx context.Context, req ai.AnalysisRequest) (*ai.AnalysisResult, error) {
	g.mu.Lock()
	gate := g.release[req.Description]
	res := g.results[req.Description]
	g.mu.Unlock()

	g.started <- req.Description
	if gate != nil {
		<-gate
	}
	if g.err != nil {
		return nil, g.err
	}
	return res, nil
}

type memErrorLog struct {
	mu      sync.Mutex
	entries []*analysiserrors.AnalysisError
}

func (m *memErrorLog) Save(ctx context.Context, e *analysiserrors.AnalysisError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memErrorLog) ListByDiagnosis(ctx context.Context, tenant, diagnosisID string, limit int) ([]*analysiserrors.AnalysisError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, nil
}

type memRepo struct {
	mu    sync.Mutex
	saved []*domain.Diagnosis
}

func (m *memRepo) Save(ctx context.Context, d *domain.Diagnosis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, d)
	return nil
}

func (m *memRepo) Get(ctx context.Context, tenant string, id domain.DiagnosisID) (*domain.Diagnosis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.saved {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memRepo) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Diagnosis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

func (m *memRepo) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Diagnosis, error) {
	return m.Latest(ctx, tenant, pageSize)
}

func newTestService(client ai.Client) *Service {
	return &Service{
		AI:    client,
		Cases: appcases.NewService(nil),
		Clock: application.SystemClock{},
	}
}

func TestAnalyzeLastSubmittedWins(t *testing.T) {
	gated := newGatedAI()
	releaseA := gated.expect("slow fault", &ai.AnalysisResult{SummaryText: "old answer"})
	releaseB := gated.expect("fast fault", &ai.AnalysisResult{SummaryText: "new answer"})

	repo := &memRepo{}
	svc := newTestService(gated)
	svc.Repo = repo

	type outcome struct {
		res *AnalyzeResult
		err error
	}
	resA := make(chan outcome, 1)
	resB := make(chan outcome, 1)

	go func() {
		r, err := svc.Analyze(context.Background(), AnalyzeCommand{TenantID: "t", Description: "slow fault"})
		resA <- outcome{r, err}
	}()
	require.Equal(t, "slow fault", <-gated.started)

	go func() {
		r, err := svc.Analyze(context.Background(), AnalyzeCommand{TenantID: "t", Description: "fast fault"})
		resB <- outcome{r, err}
	}()
	require.Equal(t, "fast fault", <-gated.started)

	// newer submission finishes first
	close(releaseB)
	b := <-resB
	require.NoError(t, b.err)
	assert.False(t, b.res.Stale)

	// older submission finishes after; its result must be stale
	close(releaseA)
	a := <-resA
	require.NoError(t, a.err)
	assert.True(t, a.res.Stale)
	assert.Equal(t, "old answer", a.res.SummaryText)

	current := svc.Current()
	require.NotNil(t, current)
	assert.Equal(t, "new answer", current.SummaryText)

	// stale result never persisted
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "new answer", repo.saved[0].SummaryText)
}

func TestAnalyzeSuccess(t *testing.T) {
	gated := newGatedAI()
	close(gated.expect("kulkas tidak dingin", &ai.AnalysisResult{
		SummaryText: "## Penyebab\n- **Freon**: habis",
		Citations:   []ai.Citation{{URI: "https://example.com", Title: "Refrigerant basics"}},
		Model:       "gemini-2.5-flash",
	}))
	repo := &memRepo{}
	svc := newTestService(gated)
	svc.Repo = repo

	res, err := svc.Analyze(context.Background(), AnalyzeCommand{
		TenantID:    "bengkel-1",
		Description: "kulkas tidak dingin",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.False(t, res.Stale)
	assert.Len(t, res.Citations, 1)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, "Penyebab", res.Blocks[0].Text)

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	assert.Equal(t, "bengkel-1", saved.TenantID)
	assert.Equal(t, domain.StatusSuccess, saved.Status)
	assert.Equal(t, "kulkas tidak dingin", saved.Description)
}

func TestAnalyzeFailureIsAudited(t *testing.T) {
	gated := newGatedAI()
	gated.err = &ai.StatusError{Code: 401, Message: "bad key"}
	errorLog := &memErrorLog{}
	svc := newTestService(gated)
	svc.ErrorLog = errorLog

	_, err := svc.Analyze(context.Background(), AnalyzeCommand{TenantID: "t", Description: "x"})
	require.Error(t, err)

	require.Len(t, errorLog.entries, 1)
	entry := errorLog.entries[0]
	assert.Equal(t, string(ai.FailureAuthorization), entry.Kind)
	assert.Equal(t, "t", entry.TenantID)
	assert.NotEmpty(t, entry.Message)

	// failed call never becomes the current result
	assert.Nil(t, svc.Current())
}

// Production wiring puts the retry invoker between the service and the
// provider, so the audit entry must classify the invoker's terminal error,
// not just a raw provider error.
func TestAnalyzeFailureAuditThroughRetry(t *testing.T) {
	t.Run("authorization failure keeps its kind", func(t *testing.T) {
		gated := newGatedAI()
		gated.err = &ai.StatusError{Code: 401, Message: "bad key"}
		errorLog := &memErrorLog{}
		svc := newTestService(retry.New(gated, retry.Policy{}))
		svc.ErrorLog = errorLog

		_, err := svc.Analyze(context.Background(), AnalyzeCommand{TenantID: "t", Description: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrAuthorization)

		require.Len(t, errorLog.entries, 1)
		entry := errorLog.entries[0]
		assert.Equal(t, string(ai.FailureAuthorization), entry.Kind)
		assert.Equal(t, 1, entry.Attempts)
	})

	t.Run("exhausted retries record the attempt count", func(t *testing.T) {
		gated := newGatedAI()
		gated.err = &ai.StatusError{Code: 503, Message: "overloaded"}
		errorLog := &memErrorLog{}
		svc := newTestService(retry.New(gated, retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}))
		svc.ErrorLog = errorLog

		_, err := svc.Analyze(context.Background(), AnalyzeCommand{TenantID: "t", Description: "x"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrMaxRetries)

		require.Len(t, errorLog.entries, 1)
		entry := errorLog.entries[0]
		assert.Equal(t, string(ai.FailureTransient), entry.Kind)
		assert.Equal(t, 3, entry.Attempts)
	})
}

func TestPaginate(t *testing.T) {
	repo := &memRepo{saved: []*domain.Diagnosis{
		{ID: "d1", TenantID: "t"},
		{ID: "d2", TenantID: "t"},
	}}
	svc := newTestService(newGatedAI())
	svc.Repo = repo

	list, err := svc.Paginate(context.Background(), "t", 1, 20)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestHistoryDisabled(t *testing.T) {
	svc := newTestService(newGatedAI())

	_, err := svc.Latest(context.Background(), "t", 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	_, err = svc.Get(context.Background(), "t", "some-id")
	assert.ErrorIs(t, err, ErrHistoryDisabled)

	_, err = svc.Paginate(context.Background(), "t", 1, 20)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}
