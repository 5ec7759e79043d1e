// Package lockout tracks failed authentication attempts per identifier and
// temporarily refuses further attempts once a threshold is crossed. Counters
// are the only mutable shared state on the server side; a single mutex keeps
// increments atomic under concurrent credential-stuffing bursts.
package lockout

import (
	"errors"
	"sync"
	"time"

	"tillpoint.org/internal/obs"
)

// ErrLocked indicates the identifier is currently locked out.
var ErrLocked = errors.New("lockout: too many failed attempts")

const (
	DefaultThreshold = 5
	DefaultWindow    = 15 * time.Minute
	DefaultDuration  = 15 * time.Minute

	sweepInterval = time.Minute
)

// Status is the answer to a pre-login lockout check.
type Status struct {
	Locked           bool
	RemainingSeconds int
}

type record struct {
	count       int
	windowStart time.Time
	lockedUntil time.Time
}

// Guard holds per-identifier failure counters with a sliding window. Records
// are created lazily on first failure and reset on success or expiry; expiry
// is lazy, a background sweep only trims abandoned records.
type Guard struct {
	mu      sync.Mutex
	records map[string]*record

	threshold int
	window    time.Duration
	duration  time.Duration
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Guard.
type Option func(*Guard)

// WithThreshold overrides the failure count that triggers a lock.
func WithThreshold(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.threshold = n
		}
	}
}

// WithWindow overrides the sliding window for counting failures.
func WithWindow(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithDuration overrides how long a triggered lock lasts.
func WithDuration(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.duration = d
		}
	}
}

// WithClock overrides the time source. Test use only.
func WithClock(fn func() time.Time) Option {
	return func(g *Guard) {
		if fn != nil {
			g.now = fn
		}
	}
}

// NewGuard constructs a Guard and starts its sweep goroutine. Call Close on
// shutdown.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		records:   make(map[string]*record),
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		duration:  DefaultDuration,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	go g.sweep()
	return g
}

// Close stops the background sweep.
func (g *Guard) Close() {
	g.stopOnce.Do(func() { close(g.stop) })
}

// Check reports whether the identifier is locked and for how much longer.
// A lock whose expiry has passed reads as unlocked and the record becomes
// eligible for reuse.
func (g *Guard) Check(identifier string) Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[identifier]
	if !ok {
		return Status{}
	}
	now := g.now()
	if rec.lockedUntil.After(now) {
		remaining := int(rec.lockedUntil.Sub(now).Round(time.Second).Seconds())
		if remaining < 1 {
			remaining = 1
		}
		return Status{Locked: true, RemainingSeconds: remaining}
	}
	if !rec.lockedUntil.IsZero() {
		// Lock expired; reset the record lazily.
		delete(g.records, identifier)
	}
	return Status{}
}

// RecordFailure increments the counter for the identifier and returns true
// when this failure triggered a new lock.
func (g *Guard) RecordFailure(identifier string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	rec, ok := g.records[identifier]
	if !ok || (rec.lockedUntil.IsZero() && now.Sub(rec.windowStart) > g.window) {
		rec = &record{windowStart: now}
		g.records[identifier] = rec
	}
	if rec.lockedUntil.After(now) {
		// Already locked; attempts while locked do not extend the lock.
		return false
	}
	if !rec.lockedUntil.IsZero() && !rec.lockedUntil.After(now) {
		// Previous lock expired; start a fresh window.
		*rec = record{windowStart: now}
	}
	rec.count++
	if rec.count >= g.threshold {
		rec.lockedUntil = now.Add(g.duration)
		obs.LockoutsTotal.Inc()
		return true
	}
	return false
}

// Reset clears the counter and any lock for the identifier. Called exactly
// once per successful authentication.
func (g *Guard) Reset(identifier string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, identifier)
}

// FailureCount returns the current counter for the identifier.
func (g *Guard) FailureCount(identifier string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[identifier]
	if !ok {
		return 0
	}
	return rec.count
}

// sweep trims records whose window and lock have both expired, so abandoned
// identifiers do not accumulate. Correctness never depends on it.
func (g *Guard) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			now := g.now()
			g.mu.Lock()
			for id, rec := range g.records {
				if rec.lockedUntil.After(now) {
					continue
				}
				if now.Sub(rec.windowStart) > g.window {
					delete(g.records, id)
				}
			}
			g.mu.Unlock()
		}
	}
}
