package storage

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]Run
	records map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]Run)
	s.records = make(map[string][]Record)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

func (s *MemoryStore) SaveRecords(_ context.Context, runID string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return ErrNotFound
	}
	for _, r := range records {
		r.RunID = runID
		s.records[runID] = append(s.records[runID], r)
	}
	return nil
}

func (s *MemoryStore) Records(_ context.Context, runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	return append([]Record(nil), s.records[runID]...), nil
}

func (s *MemoryStore) Best(ctx context.Context, runID string, n int) ([]Record, error) {
	rs, err := s.Records(ctx, runID)
	if err != nil {
		return nil, err
	}
	sortBest(rs)
	if n >= 0 && len(rs) > n {
		rs = rs[:n]
	}
	return rs, nil
}

func (s *MemoryStore) Close() error { return nil }
