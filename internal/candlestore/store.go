// Package candlestore maintains the rolling in-memory view of recent price
// action: one append-only ring of closed candles plus at most one forming
// candle per (symbol, timeframe) series.
package candlestore

import (
	"sync"

	"pasignal/internal/model"
)

// Retention is the maximum number of closed candles kept per series.
// Overflow drops from the head.
const Retention = 1000

// series holds the closed ring and forming slot for one (symbol, timeframe).
type series struct {
	closed  []model.Candle
	forming *model.Candle
}

// Store maps (symbol, timeframe) to candle series. Writes for a given series
// must be serialised by the caller (the ingest/engine pair); the internal
// lock guards the map and each series' candles, so a read never observes a
// half-applied update.
type Store struct {
	mu     sync.RWMutex
	series map[string]*series
}

// New creates an empty candle store.
func New() *Store {
	return &Store{series: make(map[string]*series, 64)}
}

func key(symbol, timeframe string) string {
	return symbol + ":" + timeframe
}

// Init seeds a series with historical closed candles (ascending OpenTime).
// Invalid or non-closed candles are skipped; the tail beyond Retention is
// trimmed from the head.
func (s *Store) Init(symbol, timeframe string, initial []model.Candle) {
	cs := make([]model.Candle, 0, len(initial))
	for _, c := range initial {
		if !c.Valid() || !c.IsClosed {
			continue
		}
		cs = append(cs, c)
	}
	if len(cs) > Retention {
		cs = cs[len(cs)-Retention:]
	}

	s.mu.Lock()
	s.series[key(symbol, timeframe)] = &series{closed: cs}
	s.mu.Unlock()
}

// UpsertClosed applies a closed-candle update: if the tail has the same
// OpenTime the tail is replaced, otherwise the candle is appended. When the
// candle is marked closed the forming slot is cleared. Returns false if the
// candle fails validation and was rejected.
func (s *Store) UpsertClosed(symbol, timeframe string, c model.Candle) bool {
	if !c.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.getOrCreate(symbol, timeframe)
	n := len(sr.closed)
	if n > 0 && sr.closed[n-1].OpenTime.Equal(c.OpenTime) {
		sr.closed[n-1] = c
	} else {
		sr.closed = append(sr.closed, c)
		if len(sr.closed) > Retention {
			sr.closed = sr.closed[len(sr.closed)-Retention:]
		}
	}
	if c.IsClosed {
		sr.forming = nil
	}
	return true
}

// SetForming replaces the single forming candle for the series.
// Returns false if the candle fails validation.
func (s *Store) SetForming(symbol, timeframe string, c model.Candle) bool {
	if !c.Valid() {
		return false
	}
	c.IsClosed = false

	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.getOrCreate(symbol, timeframe)
	sr.forming = &c
	return true
}

// Closed returns a snapshot of the closed candles for a series.
// Callers must not mutate the returned slice.
func (s *Store) Closed(symbol, timeframe string) []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr := s.series[key(symbol, timeframe)]
	if sr == nil {
		return nil
	}
	out := make([]model.Candle, len(sr.closed))
	copy(out, sr.closed)
	return out
}

// ClosedWithForming returns the closed candles plus the forming candle
// appended, when one exists.
func (s *Store) ClosedWithForming(symbol, timeframe string) []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr := s.series[key(symbol, timeframe)]
	if sr == nil {
		return nil
	}
	n := len(sr.closed)
	if sr.forming != nil {
		n++
	}
	out := make([]model.Candle, 0, n)
	out = append(out, sr.closed...)
	if sr.forming != nil {
		out = append(out, *sr.forming)
	}
	return out
}

// LastN returns the most recent n closed candles (fewer if the series is
// shorter).
func (s *Store) LastN(symbol, timeframe string, n int) []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr := s.series[key(symbol, timeframe)]
	if sr == nil || n <= 0 {
		return nil
	}
	cs := sr.closed
	if len(cs) > n {
		cs = cs[len(cs)-n:]
	}
	out := make([]model.Candle, len(cs))
	copy(out, cs)
	return out
}

// Len returns the number of closed candles held for a series.
func (s *Store) Len(symbol, timeframe string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sr := s.series[key(symbol, timeframe)]; sr != nil {
		return len(sr.closed)
	}
	return 0
}

func (s *Store) getOrCreate(symbol, timeframe string) *series {
	k := key(symbol, timeframe)
	sr := s.series[k]
	if sr == nil {
		sr = &series{}
		s.series[k] = sr
	}
	return sr
}
