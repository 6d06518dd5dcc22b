// Package memory provides in-process store implementations for backtests
// and tests where persistence across restarts is not needed.
package memory

import (
	"context"
	"sync"
	"time"

	"pasignal/internal/model"
)

// CooldownStore is a map-backed model.CooldownStore.
type CooldownStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewCooldownStore creates an empty cooldown store.
func NewCooldownStore() *CooldownStore {
	return &CooldownStore{entries: make(map[string]time.Time)}
}

func key(symbol, timeframe string, side model.Side, zoneKey string) string {
	return symbol + "|" + timeframe + "|" + string(side) + "|" + zoneKey
}

func (s *CooldownStore) IsOnCooldown(_ context.Context, symbol, timeframe string, side model.Side, zoneKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.entries[key(symbol, timeframe, side, zoneKey)]
	return ok && time.Now().Before(until), nil
}

func (s *CooldownStore) AddCooldown(_ context.Context, symbol, timeframe string, side model.Side, zoneKey string, d time.Duration) error {
	s.mu.Lock()
	s.entries[key(symbol, timeframe, side, zoneKey)] = time.Now().Add(d)
	s.mu.Unlock()
	return nil
}

func (s *CooldownStore) CleanupExpired(_ context.Context) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, until := range s.entries {
		if now.After(until) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *CooldownStore) Close() error { return nil }

// SignalStore collects signals in memory.
type SignalStore struct {
	mu      sync.Mutex
	signals []model.Signal
}

// NewSignalStore creates an empty signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{}
}

func (s *SignalStore) SaveSignal(_ context.Context, sig *model.Signal) error {
	s.mu.Lock()
	s.signals = append(s.signals, *sig)
	s.mu.Unlock()
	return nil
}

// Signals returns a snapshot of everything saved so far.
func (s *SignalStore) Signals() []model.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

func (s *SignalStore) Close() error { return nil }
