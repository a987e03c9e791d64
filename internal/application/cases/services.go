package cases

import (
	"fmt"
	"sync"

	domain "github.com/bryanwahyu/teknisi-ai/internal/domain/cases"
)

// Service owns the session working set of imported case records.
// The whole collection is replaced (not merged) on each successful import;
// a hard parse failure leaves the prior set untouched. Records live in
// memory only and are dropped on shutdown.
type Service struct {
	Loader domain.Loader

	mu      sync.RWMutex
	records []domain.CaseRecord
}

func NewService(loader domain.Loader) *Service {
	return &Service{Loader: loader}
}

// ImportResult rangkuman hasil import satu file
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Import parses and normalizes an uploaded archive file, then atomically
// replaces the working set. Rows without a usable fault description are
// skipped silently; zero usable rows is an error and keeps the old set.
func (s *Service) Import(filename string, data []byte) (ImportResult, error) {
	rows, err := s.Loader.Rows(filename, data)
	if err != nil {
		return ImportResult{}, err
	}

	records := domain.Normalize(rows)
	if len(records) == 0 {
		return ImportResult{}, fmt.Errorf("%w: %s", domain.ErrNoValidRecords, filename)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	return ImportResult{
		Imported: len(records),
		Skipped:  len(rows) - len(records),
	}, nil
}

// Records returns a snapshot copy of the current working set.
func (s *Service) Records() []domain.CaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CaseRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the size of the working set.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops the working set (session end).
func (s *Service) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}
