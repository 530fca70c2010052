package tle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the current catalog. Readers never block; refreshes are
// serialized.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Refresh fetches the catalog, parses it and installs the result. A fetch
// that yields no valid element sets leaves the current dataset untouched.
func (s *Store) Refresh(ctx context.Context, f *Fetcher, logger *slog.Logger) (*Dataset, error) {
	if !s.mu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.mu.Unlock()

	sets, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("no valid element sets from %s", f.SourceURL())
	}

	ds := NewDataset(f.SourceURL(), time.Now().UTC(), sets)
	s.Set(ds)
	logger.Info("catalog refreshed",
		"count", len(sets),
		"source", f.SourceURL(),
		"epoch_min", ds.EpochRange.Min.Format(time.RFC3339),
		"epoch_max", ds.EpochRange.Max.Format(time.RFC3339),
	)
	return ds, nil
}
