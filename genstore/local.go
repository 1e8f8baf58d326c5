package genstore

import (
	"context"
	"sync"
	"time"
)

type localGenEntry struct {
	State     State
	UpdatedAt time.Time
}

// LocalGenStore keeps install state in-process (default).
// Optional cleanup loop prunes Pending records left by abandoned installs.
type LocalGenStore struct {
	mu     sync.RWMutex
	gens   map[string]localGenEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

func NewLocalGenStore(cleanupInterval, retention time.Duration) *LocalGenStore {
	s := &LocalGenStore{gens: make(map[string]localGenEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *LocalGenStore) Get(_ context.Context, gen string) (State, error) {
	s.mu.RLock()
	e := s.gens[gen]
	s.mu.RUnlock()
	return e.State, nil
}

func (s *LocalGenStore) Mark(_ context.Context, gen string, st State) error {
	now := time.Now()
	s.mu.Lock()
	s.gens[gen] = localGenEntry{State: st, UpdatedAt: now}
	s.mu.Unlock()
	return nil
}

func (s *LocalGenStore) Forget(_ context.Context, gen string) error {
	s.mu.Lock()
	delete(s.gens, gen)
	s.mu.Unlock()
	return nil
}

// Cleanup drops Pending records not touched within retention.
// Complete records stay until Forget.
func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.gens {
		if e.State == Pending && e.UpdatedAt.Before(cutoff) {
			delete(s.gens, k)
		}
	}
	s.mu.Unlock()
}

func (s *LocalGenStore) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop() // stop ticker before waiting
			s.wg.Wait()
		}
	})
	return nil
}
