package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while mirror writes are suspended. Callers treat
// it like any other Redis failure: SQLite stays authoritative and the write
// is simply not mirrored.
var ErrCircuitOpen = errors.New("redis writes suspended: breaker open")

// State is the breaker state, exported as a Prometheus gauge value.
type State int

const (
	StateClosed   State = 0 // mirror writes flow through
	StateOpen     State = 1 // writes rejected until the retry window passes
	StateHalfOpen State = 2 // a single probe write is in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker suspends Redis mirror writes after a streak of failures so
// a dead Redis cannot add per-signal latency on the emission path. After
// retryAfter it admits one probe write; the probe's outcome decides whether
// the mirror resumes or stays suspended for another window.
type CircuitBreaker struct {
	mu         sync.Mutex
	state      State
	streak     int
	streakMax  int
	retryAfter time.Duration
	downSince  time.Time

	// OnStateChange fires on every transition, outside of any Redis call.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker returns a breaker that trips after streakMax consecutive
// failures and re-probes every retryAfter.
func NewCircuitBreaker(streakMax int, retryAfter time.Duration) *CircuitBreaker {
	return &CircuitBreaker{streakMax: streakMax, retryAfter: retryAfter}
}

// Execute runs one mirror write through the breaker. While suspended it
// returns ErrCircuitOpen without touching Redis; otherwise it returns the
// write's own error.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.settle(err)
	return err
}

// admit decides whether the next write may reach Redis, promoting an expired
// suspension to a probe.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		return ErrCircuitOpen
	}
	if cb.state != StateOpen {
		return nil
	}
	if time.Since(cb.downSince) <= cb.retryAfter {
		return ErrCircuitOpen
	}
	cb.shift(StateHalfOpen)
	return nil
}

// settle records the write outcome and moves the breaker accordingly.
func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.streak++
		cb.downSince = time.Now()
		if cb.state == StateHalfOpen || cb.streak >= cb.streakMax {
			cb.shift(StateOpen)
		}
		return
	}

	if cb.state == StateHalfOpen {
		cb.shift(StateClosed)
	}
	cb.streak = 0
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// shift transitions the state under cb.mu and fires the callback.
func (cb *CircuitBreaker) shift(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateClosed {
		cb.streak = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
