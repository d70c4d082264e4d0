package samplestore

import (
	"sync"

	"github.com/voluzi/cloudvitals/pkg/metrics"
)

// Store keeps the most recent sample. Writers replace the whole slot under the
// lock, so readers always get a sample produced by a single tick.
type Store struct {
	sample metrics.Sample
	ready  bool
	lock   sync.RWMutex
}

// New creates an empty Store. Until the first Set, Get returns the zero sample.
func New() *Store {
	return &Store{}
}

// Set replaces the stored sample.
func (s *Store) Set(sample metrics.Sample) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.sample = sample
	s.ready = true
}

// Get returns a copy of the latest sample.
func (s *Store) Get() metrics.Sample {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.sample
}

// Ready reports whether at least one sample has been stored.
func (s *Store) Ready() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.ready
}
