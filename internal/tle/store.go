package tle

import (
	"sync/atomic"
	"time"

	"github.com/lowfreq/meridian/internal/metrics"
)

// Store hands the current dataset to readers lock-free. The refresher is the
// only writer; readers on the request path never block.
type Store struct {
	dataset atomic.Pointer[Dataset]
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded yet.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// SetDataset builds a dataset from parsed entries and atomically swaps it in.
func (s *Store) SetDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		EpochRange: Range(entries),
		Satellites: entries,
	}
	s.dataset.Store(ds)
	metrics.SetTLEEntries(len(entries))
	return ds
}

// AgeSeconds returns the age of the current dataset, or -1 if none is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}
