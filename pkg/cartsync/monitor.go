package cartsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ActivityKind is a shopper interaction that counts as presence.
type ActivityKind string

const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityClick   ActivityKind = "click"
	ActivityScroll  ActivityKind = "scroll"
	ActivityFocus   ActivityKind = "focus"
)

// Valid reports whether k is a known kind.
func (k ActivityKind) Valid() bool {
	switch k {
	case ActivityPointer, ActivityKey, ActivityClick, ActivityScroll, ActivityFocus:
		return true
	}
	return false
}

// Toucher refreshes the server's idea of when the session was last active.
type Toucher interface {
	Touch(ctx context.Context) error
}

// cartReleaser is the part of Store the monitor drives.
type cartReleaser interface {
	ClearAndRelease(ctx context.Context, reason Reason) error
	Len() int
	OnChange(fn func(empty bool)) func()
}

// MonitorConfig holds the idle and heartbeat timings.
type MonitorConfig struct {
	IdleAfter         time.Duration
	HeartbeatInterval time.Duration
}

// Monitor releases the cart after a stretch without shopper activity and
// keeps the server session alive with throttled heartbeats while the shopper
// is around. The idle timer only runs while the cart has lines.
type Monitor struct {
	cart    cartReleaser
	toucher Toucher
	cfg     MonitorConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	mu           sync.Mutex
	ctx          context.Context
	timer        *time.Timer
	gen          uint64
	nonEmpty     bool
	lastActivity time.Time
	pendingBeat  bool
	fired        chan struct{}
}

func NewMonitor(cart cartReleaser, toucher Toucher, cfg MonitorConfig, logger *slog.Logger) (*Monitor, error) {
	if cfg.IdleAfter <= 0 || cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("monitor timings must be positive: idle=%s heartbeat=%s", cfg.IdleAfter, cfg.HeartbeatInterval)
	}
	return &Monitor{
		cart:    cart,
		toucher: toucher,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.HeartbeatInterval), 1),
		logger:  logger,
		ctx:     context.Background(),
		fired:   make(chan struct{}, 1),
	}, nil
}

// Run arms the monitor and sends heartbeats until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	stop := m.cart.OnChange(m.cartChanged)
	defer stop()
	m.cartChanged(m.cart.Len() == 0)

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.disarmLocked()
			m.mu.Unlock()
			return nil
		case <-ticker.C:
			if _, err := m.beat(ctx, false); err != nil {
				m.logger.WarnContext(ctx, "heartbeat failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Activity records a shopper interaction and restarts the idle timer.
func (m *Monitor) Activity(kind ActivityKind) {
	if !kind.Valid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
	m.pendingBeat = true
	if m.nonEmpty {
		m.armLocked()
	}
}

// Armed reports whether an idle release is scheduled.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

// Fired receives a value each time the idle release runs.
func (m *Monitor) Fired() <-chan struct{} {
	return m.fired
}

// Heartbeat touches the server session if there has been activity since the
// last heartbeat and the throttle allows it. It reports whether a touch was sent.
// Beats from Run's ticker are already paced and skip the throttle.
func (m *Monitor) Heartbeat(ctx context.Context) (bool, error) {
	return m.beat(ctx, true)
}

func (m *Monitor) beat(ctx context.Context, throttled bool) (bool, error) {
	m.mu.Lock()
	if !m.pendingBeat {
		m.mu.Unlock()
		heartbeats.WithLabelValues("quiet").Inc()
		return false, nil
	}
	if throttled && !m.limiter.Allow() {
		m.mu.Unlock()
		heartbeats.WithLabelValues("throttled").Inc()
		return false, nil
	}
	m.pendingBeat = false
	m.mu.Unlock()

	if err := m.toucher.Touch(ctx); err != nil {
		m.mu.Lock()
		m.pendingBeat = true
		m.mu.Unlock()
		heartbeats.WithLabelValues("failed").Inc()
		return false, err
	}
	heartbeats.WithLabelValues("sent").Inc()
	return true, nil
}

func (m *Monitor) cartChanged(empty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonEmpty = !empty
	if empty {
		m.disarmLocked()
		return
	}
	if m.timer == nil {
		m.armLocked()
	}
}

func (m *Monitor) armLocked() {
	m.disarmLocked()
	gen := m.gen
	m.timer = time.AfterFunc(m.cfg.IdleAfter, func() { m.fire(gen) })
}

func (m *Monitor) disarmLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.timer == nil {
		m.mu.Unlock()
		return
	}
	m.disarmLocked()
	ctx := m.ctx
	m.mu.Unlock()

	idleReleases.Inc()
	if err := m.cart.ClearAndRelease(ctx, ReasonIdle); err != nil {
		m.logger.WarnContext(ctx, "idle release failed", slog.String("error", err.Error()))
	} else {
		m.logger.InfoContext(ctx, "cart released after inactivity", slog.Duration("idle_after", m.cfg.IdleAfter))
	}

	select {
	case m.fired <- struct{}{}:
	default:
	}
}
