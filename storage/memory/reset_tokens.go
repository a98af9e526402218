package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
)

// ResetTokens is an in-memory core.ResetTokenStore. Tokens are single use.
type ResetTokens struct {
	mu     sync.Mutex
	clock  clock.Clock
	data   map[string]item
	closed chan struct{}
	once   sync.Once
}

type item struct {
	userID string
	exp    time.Time
}

var _ core.ResetTokenStore = (*ResetTokens)(nil)

// NewResetTokens starts a background goroutine that drops expired tokens
// every minute. Call Close to stop it.
func NewResetTokens(c clock.Clock) *ResetTokens {
	s := &ResetTokens{clock: clock.Or(c), data: make(map[string]item), closed: make(chan struct{})}
	go s.cleanupLoop()
	return s
}

func (s *ResetTokens) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = item{userID: userID, exp: s.clock.Now().Add(ttl)}
	return nil
}

func (s *ResetTokens) Take(ctx context.Context, token string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data[token]
	if !ok {
		return "", false, nil
	}
	delete(s.data, token)
	if !s.clock.Now().Before(it.exp) {
		return "", false, nil
	}
	return it.userID, true, nil
}

func (s *ResetTokens) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.closed:
			return
		}
	}
}

func (s *ResetTokens) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for k, v := range s.data {
		if !now.Before(v.exp) {
			delete(s.data, k)
		}
	}
}

// Close stops the background cleanup goroutine.
func (s *ResetTokens) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
