package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config describes the countdown. Thresholds are remaining-time boundaries in seconds.
type Config struct {
	LimitSeconds   int
	WarningSeconds int
	DangerSeconds  int
	Interval       time.Duration
}

// Callbacks are invoked from the polling goroutine (or from Poll's caller).
// OnExpire may call Stop; the other callbacks must not.
type Callbacks struct {
	OnTick    func(remaining int)
	OnWarning func(remaining int)
	OnDanger  func(remaining int)
	OnExpire  func()
}

// Timer is a wall-clock countdown re-evaluated on a fixed cadence. Remaining
// time is always derived from the start time, never accumulated.
type Timer struct {
	cfg Config
	cb  Callbacks
	now func() time.Time
	log zerolog.Logger

	fire sync.Mutex // serializes polls and lets Stop wait for in-flight callbacks

	mu       sync.Mutex
	start    time.Time
	running  bool
	stopped  bool
	warned   bool
	dangered bool
	expired  bool
	drifted  bool
	paused   bool
	pausedAt time.Time
	quit     chan struct{}
	done     chan struct{}
}

type Option func(*Timer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// WithLogger attaches a logger for drift warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Timer) { t.log = log.With().Str("component", "timer").Logger() }
}

func New(cfg Config, cb Callbacks, opts ...Option) *Timer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.LimitSeconds < 0 {
		cfg.LimitSeconds = 0
	}
	t := &Timer{cfg: cfg, cb: cb, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start anchors the countdown at startTime (zero means now) and begins
// polling. Starting a running or stopped timer is a no-op.
func (t *Timer) Start(startTime time.Time) {
	t.mu.Lock()
	if t.running || t.stopped {
		t.mu.Unlock()
		return
	}
	if startTime.IsZero() {
		startTime = t.now()
	}
	t.start = startTime
	t.running = true
	t.quit = make(chan struct{})
	t.done = make(chan struct{})
	quit, done := t.quit, t.done
	t.mu.Unlock()

	go t.loop(quit, done)
}

// Anchor sets the start time without spawning the polling goroutine; callers
// drive the timer through Poll.
func (t *Timer) Anchor(startTime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.stopped {
		return
	}
	if startTime.IsZero() {
		startTime = t.now()
	}
	t.start = startTime
	t.running = true
}

func (t *Timer) loop(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	t.Poll(t.now())
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			if t.Poll(t.now()) == 0 {
				return
			}
		}
	}
}

// Stop halts polling. It is idempotent, and once it returns no callback fires.
func (t *Timer) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.quit != nil {
		close(t.quit)
	}
	t.mu.Unlock()

	// Wait for an in-flight poll to finish its callbacks.
	t.fire.Lock()
	t.fire.Unlock()
}

// Pause freezes the countdown at at. No callback fires until Resume.
func (t *Timer) Pause(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.stopped || t.paused {
		return
	}
	t.paused = true
	t.pausedAt = at
}

// Resume continues a paused countdown at at. The start time moves forward by
// the paused span.
func (t *Timer) Resume(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return
	}
	if at.After(t.pausedAt) {
		t.start = t.start.Add(at.Sub(t.pausedAt))
	}
	t.paused = false
	t.pausedAt = time.Time{}
}

// Extend sets a new limit. A threshold the new remaining time is back above
// can fire again.
func (t *Timer) Extend(limitSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.cfg.LimitSeconds = limitSeconds
	remaining := t.remainingLocked(t.now())
	if remaining > t.cfg.WarningSeconds {
		t.warned = false
	}
	if remaining > t.cfg.DangerSeconds {
		t.dangered = false
	}
}

// Poll evaluates the countdown at now and fires due callbacks. Warning,
// danger and expiry each fire at most once. It returns the remaining seconds.
func (t *Timer) Poll(now time.Time) int {
	t.fire.Lock()
	defer t.fire.Unlock()

	t.mu.Lock()
	if t.stopped || !t.running || t.paused {
		t.mu.Unlock()
		return t.Remaining(now)
	}
	remaining := t.remainingLocked(now)
	warn := !t.warned && t.cfg.WarningSeconds > 0 && remaining <= t.cfg.WarningSeconds && remaining > 0
	danger := !t.dangered && t.cfg.DangerSeconds > 0 && remaining <= t.cfg.DangerSeconds && remaining > 0
	expire := !t.expired && remaining == 0
	if warn {
		t.warned = true
	}
	if danger {
		t.dangered = true
	}
	if expire {
		t.expired = true
		t.stopped = true
		if t.quit != nil {
			close(t.quit)
		}
	}
	t.mu.Unlock()

	if t.cb.OnTick != nil {
		t.cb.OnTick(remaining)
	}
	if warn && t.cb.OnWarning != nil {
		t.cb.OnWarning(remaining)
	}
	if danger && t.cb.OnDanger != nil {
		t.cb.OnDanger(remaining)
	}
	if expire && t.cb.OnExpire != nil {
		t.cb.OnExpire()
	}
	return remaining
}

// Remaining returns the whole seconds left at now, never negative. While
// paused it is the value at the pause.
func (t *Timer) Remaining(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.start.IsZero() {
		return t.cfg.LimitSeconds
	}
	return t.remainingLocked(now)
}

func (t *Timer) remainingLocked(now time.Time) int {
	if t.paused {
		now = t.pausedAt
	}
	return RemainingAt(t.start, now, t.cfg.LimitSeconds, t.warnDrift)
}

func (t *Timer) warnDrift(start, now time.Time) {
	if t.drifted {
		return
	}
	t.drifted = true
	t.log.Warn().Time("start", start).Time("now", now).Msg("timer start lies in the future; assuming full time remains")
}

// RemainingAt computes max(0, limit - floor((now-start)/1s)). A zero or future
// start yields the full limit; onDrift is told about the future case.
func RemainingAt(start, now time.Time, limitSeconds int, onDrift func(start, now time.Time)) int {
	if start.IsZero() {
		return limitSeconds
	}
	if start.After(now) {
		if onDrift != nil {
			onDrift(start, now)
		}
		return limitSeconds
	}
	elapsed := int(now.Sub(start) / time.Second)
	if remaining := limitSeconds - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// Elapsed returns whole seconds since start, capped at the limit.
func (t *Timer) Elapsed(now time.Time) int {
	elapsed, _ := t.elapsed(now)
	return elapsed
}

// Progress is the elapsed fraction of the limit in [0,1].
func (t *Timer) Progress(now time.Time) float64 {
	elapsed, limit := t.elapsed(now)
	if limit == 0 {
		return 1
	}
	return float64(elapsed) / float64(limit)
}

func (t *Timer) elapsed(now time.Time) (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	limit := t.cfg.LimitSeconds
	if t.start.IsZero() {
		return 0, limit
	}
	return limit - t.remainingLocked(now), limit
}

// Format renders seconds as MM:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
