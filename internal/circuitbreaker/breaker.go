// Package circuitbreaker stops calling an upstream that keeps failing.
// It never repeats a call: a failed attempt is returned to the caller as is,
// and while the breaker is open callers get ErrOpen without any call at all.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/8adimka/expert_consult/internal/errorsx"
)

// ErrOpen is returned while the breaker rejects calls
var ErrOpen = errorsx.Wrap(errorsx.ErrUnavailable, "circuit breaker is open")

// State represents the breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds breaker configuration
type Config struct {
	MaxFailures int           // consecutive failures before opening
	Cooldown    time.Duration // time spent open before a trial call
	// OnStateChange is called with the lock released
	OnStateChange func(from, to State)
}

// Breaker is safe for concurrent use
type Breaker struct {
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool

	cfg Config
	now func() time.Time
}

// New creates a closed breaker. Zero values fall back to 3 failures and 30s.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Do runs fn once if the breaker admits the call.
// Context cancellation by the caller is not counted as an upstream failure.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.admit() {
		return ErrOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		b.onSuccess()
	case ctx.Err() != nil:
		b.release()
	default:
		b.onFailure()
	}
	return err
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	from := b.state
	ok := true
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			ok = false
			break
		}
		b.state = StateHalfOpen
		b.trial = true
	case StateHalfOpen:
		// one trial call at a time
		if b.trial {
			ok = false
			break
		}
		b.trial = true
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return ok
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	from := b.state
	b.failures = 0
	b.trial = false
	b.state = StateClosed
	b.mu.Unlock()

	b.notify(from, StateClosed)
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	from := b.state
	b.failures++
	b.trial = false
	if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *Breaker) release() {
	b.mu.Lock()
	b.trial = false
	b.mu.Unlock()
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
