package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory. Codes are lost on restart.
type MemoryStore struct {
	mu  sync.RWMutex
	m   map[string]Entry
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:   make(map[string]Entry),
		now: time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, email string) (Entry, error) {
	key := NormalizeEmail(email)

	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, ErrNoCode
	}

	// expiry is judged by the caller; Get returns what is stored so an
	// expired code reads as expired rather than missing
	return e, nil
}

func (s *MemoryStore) Put(_ context.Context, email string, e Entry) error {
	s.mu.Lock()
	s.m[NormalizeEmail(email)] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	delete(s.m, NormalizeEmail(email))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, email string) (int, error) {
	key := NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return 0, ErrNoCode
	}
	e.Attempts++
	s.m[key] = e
	return e.Attempts, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Sweep drops expired codes and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.m {
		if e.Expired(now) {
			delete(s.m, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && log != nil {
				log.Debug("recovery codes swept", "removed", n)
			}
		}
	}
}
