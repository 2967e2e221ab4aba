// Package mock provides an in-memory test double for the report.Store
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/callsight/callsight/internal/report"
)

// Store is a mock implementation of report.Store backed by a map.
type Store struct {
	mu      sync.Mutex
	records map[string]report.Record

	// SaveErr, if non-nil, is returned by Save.
	SaveErr error

	// PingErr, if non-nil, is returned by Ping.
	PingErr error

	// SimilarResults is returned by SearchSimilar verbatim.
	SimilarResults []report.SimilarResult

	// SearchCalls records every embedding passed to SearchSimilar.
	SearchCalls [][]float32
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{records: map[string]report.Record{}}
}

// Save stores the record in memory.
func (s *Store) Save(_ context.Context, rec report.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if s.records == nil {
		s.records = map[string]report.Record{}
	}
	s.records[rec.ID] = rec
	return nil
}

// Get fetches a stored record or report.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (*report.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	return &rec, nil
}

// SearchSimilar records the query and returns SimilarResults.
func (s *Store) SearchSimilar(_ context.Context, embedding []float32, _ int) ([]report.SimilarResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchCalls = append(s.SearchCalls, embedding)
	return s.SimilarResults, nil
}

// Ping returns PingErr.
func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

// Close is a no-op.
func (s *Store) Close() {}

// Len returns the number of stored records. Thread-safe.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Ensure Store implements report.Store at compile time.
var _ report.Store = (*Store)(nil)
