// Package sessionwatch keeps a signed-in client session alive: it checks the
// session periodically, surfaces a countdown shortly before expiry and forces
// a sign-out when the countdown runs dry. It is the Go-side counterpart of a
// browser tab's idle watcher and drives the /api/session endpoints.
package sessionwatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by actions invoked after the manager was torn down.
var ErrStopped = errors.New("sessionwatch: manager stopped")

const (
	DefaultCheckInterval = 30 * time.Second
	DefaultWarningWindow = 5 * time.Minute
	DefaultTick          = time.Second
)

// Client is the session backend: Validate reports remaining lifetime, Extend
// renews the session and SignOut terminates it. All three hit the HTTP
// session endpoints in production.
type Client interface {
	Validate(ctx context.Context) (remaining time.Duration, err error)
	Extend(ctx context.Context) (remaining time.Duration, err error)
	SignOut(ctx context.Context) error
}

// Callbacks surface state changes to the embedding UI. Any field may be nil.
type Callbacks struct {
	// OnWarn fires once when remaining lifetime drops below the warning
	// window, starting the countdown.
	OnWarn func(remaining time.Duration)
	// OnTick fires every countdown tick while the warning is showing.
	OnTick func(remaining time.Duration)
	// OnExpire fires when the countdown reaches zero or the session is
	// otherwise lost; the manager has already forced a sign-out.
	OnExpire func()
}

// Options tune the watcher. Zero values use the defaults.
type Options struct {
	CheckInterval time.Duration
	WarningWindow time.Duration
	Tick          time.Duration
}

func (o Options) withDefaults() Options {
	if o.CheckInterval <= 0 {
		o.CheckInterval = DefaultCheckInterval
	}
	if o.WarningWindow <= 0 {
		o.WarningWindow = DefaultWarningWindow
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	return o
}

// Manager runs the watch loop. It is cooperative and timer-driven: all state
// changes happen under one mutex inside timer callbacks or explicit user
// actions, never mid-computation. Stop cancels every pending timer, so no
// callback can fire against a torn-down session.
type Manager struct {
	client Client
	cb     Callbacks
	opts   Options

	mu       sync.Mutex
	check    *time.Timer
	tick     *time.Timer
	deadline time.Time
	warning  bool
	stopped  bool
}

// New builds a Manager; call Start to begin watching.
func New(client Client, cb Callbacks, opts Options) *Manager {
	return &Manager{
		client: client,
		cb:     cb,
		opts:   opts.withDefaults(),
	}
}

// Start schedules the first validation check. Calling Start on a stopped
// manager is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.check != nil {
		return
	}
	m.check = time.AfterFunc(m.opts.CheckInterval, m.onCheck)
}

// Stop tears the manager down and cancels all timers. Safe to call more than
// once and from any goroutine.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.stopped {
		return
	}
	m.stopped = true
	if m.check != nil {
		m.check.Stop()
		m.check = nil
	}
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
}

// Stopped reports whether the manager has been torn down.
func (m *Manager) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Warning reports whether the expiry countdown is currently showing.
func (m *Manager) Warning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warning
}

func (m *Manager) onCheck() {
	remaining, err := m.client.Validate(context.Background())

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if err != nil || remaining <= 0 {
		m.expireLocked()
		return
	}
	m.deadline = time.Now().Add(remaining)
	if remaining <= m.opts.WarningWindow {
		m.enterWarningLocked(remaining)
		return
	}
	m.check = time.AfterFunc(m.opts.CheckInterval, m.onCheck)
	m.mu.Unlock()
}

// enterWarningLocked starts the countdown. Releases the mutex before the
// callback runs.
func (m *Manager) enterWarningLocked(remaining time.Duration) {
	alreadyWarning := m.warning
	m.warning = true
	m.tick = time.AfterFunc(m.opts.Tick, m.onTick)
	onWarn := m.cb.OnWarn
	m.mu.Unlock()
	if !alreadyWarning && onWarn != nil {
		onWarn(remaining)
	}
}

func (m *Manager) onTick() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	remaining := time.Until(m.deadline)
	if remaining <= 0 {
		m.expireLocked()
		return
	}
	m.tick = time.AfterFunc(m.opts.Tick, m.onTick)
	onTick := m.cb.OnTick
	m.mu.Unlock()
	if onTick != nil {
		onTick(remaining)
	}
}

// expireLocked forces a sign-out and tears the manager down. Releases the
// mutex before the callbacks run.
func (m *Manager) expireLocked() {
	m.stopLocked()
	onExpire := m.cb.OnExpire
	m.mu.Unlock()
	_ = m.client.SignOut(context.Background())
	if onExpire != nil {
		onExpire()
	}
}

// Extend renews the session. On success the warning clears and periodic
// checks resume; on failure the session is treated as lost and a sign-out is
// forced.
func (m *Manager) Extend(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	if m.check != nil {
		m.check.Stop()
		m.check = nil
	}
	m.mu.Unlock()

	remaining, err := m.client.Extend(ctx)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if err != nil {
		m.expireLocked()
		return err
	}
	m.warning = false
	m.deadline = time.Now().Add(remaining)
	m.check = time.AfterFunc(m.opts.CheckInterval, m.onCheck)
	m.mu.Unlock()
	return nil
}

// SignOut terminates the session immediately at the user's request.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	m.stopLocked()
	m.mu.Unlock()
	return m.client.SignOut(ctx)
}
