package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func TestRemainingNeverNegative(t *testing.T) {
	tm := New(Config{LimitSeconds: 60}, Callbacks{})
	tm.Anchor(t0)
	for _, offset := range []time.Duration{0, 30 * time.Second, 59999 * time.Millisecond, 60 * time.Second, time.Hour, 1000 * time.Hour} {
		got := tm.Remaining(t0.Add(offset))
		if got < 0 {
			t.Fatalf("remaining at +%v is negative: %d", offset, got)
		}
	}
	if got := tm.Remaining(t0.Add(30500 * time.Millisecond)); got != 30 {
		t.Fatalf("expected floor-based 30s remaining, got %d", got)
	}
}

func TestExpiryFiresExactlyOnce(t *testing.T) {
	var expired int32
	tm := New(Config{LimitSeconds: 60}, Callbacks{OnExpire: func() { atomic.AddInt32(&expired, 1) }})
	tm.Anchor(t0)

	for _, offset := range []time.Duration{65 * time.Second, 66 * time.Second, 70 * time.Second} {
		if got := tm.Poll(t0.Add(offset)); got != 0 {
			t.Fatalf("expected 0 remaining at +%v, got %d", offset, got)
		}
	}
	if n := atomic.LoadInt32(&expired); n != 1 {
		t.Fatalf("expected expiry once, fired %d times", n)
	}
	tm.Extend(600)
	if got := tm.Remaining(t0.Add(70 * time.Second)); got != 0 {
		t.Fatalf("an expired timer must not be extended, got %d remaining", got)
	}
}

func TestPauseFreezesCountdown(t *testing.T) {
	var ticks, expired int32
	tm := New(Config{LimitSeconds: 60}, Callbacks{
		OnTick:   func(int) { atomic.AddInt32(&ticks, 1) },
		OnExpire: func() { atomic.AddInt32(&expired, 1) },
	})
	tm.Anchor(t0)

	tm.Pause(t0.Add(20 * time.Second))
	if got := tm.Poll(t0.Add(5 * time.Minute)); got != 40 {
		t.Fatalf("expected 40s frozen while paused, got %d", got)
	}
	if atomic.LoadInt32(&ticks) != 0 || atomic.LoadInt32(&expired) != 0 {
		t.Fatalf("callbacks fired while paused")
	}

	tm.Resume(t0.Add(100 * time.Second))
	if got := tm.Poll(t0.Add(110 * time.Second)); got != 30 {
		t.Fatalf("expected 30s after resuming, got %d", got)
	}
	if got := tm.Elapsed(t0.Add(110 * time.Second)); got != 30 {
		t.Fatalf("paused span must not count as elapsed, got %d", got)
	}
	if got := tm.Poll(t0.Add(140 * time.Second)); got != 0 || atomic.LoadInt32(&expired) != 1 {
		t.Fatalf("expected expiry 60s of running time after start, got %d remaining", got)
	}
}

func TestExtendRearmsThresholds(t *testing.T) {
	var warnings []int
	tm := New(Config{LimitSeconds: 100, WarningSeconds: 30}, Callbacks{
		OnWarning: func(r int) { warnings = append(warnings, r) },
	}, WithClock(func() time.Time { return t0.Add(80 * time.Second) }))
	tm.Anchor(t0)

	tm.Poll(t0.Add(80 * time.Second))
	tm.Extend(200)
	if got := tm.Remaining(t0.Add(80 * time.Second)); got != 120 {
		t.Fatalf("expected 120s after extension, got %d", got)
	}
	tm.Poll(t0.Add(175 * time.Second))
	if len(warnings) != 2 || warnings[0] != 20 || warnings[1] != 25 {
		t.Fatalf("expected warning before and after extension, got %v", warnings)
	}
}

func TestThresholdCallbacksFireOnce(t *testing.T) {
	var warnings, dangers []int
	tm := New(Config{LimitSeconds: 600, WarningSeconds: 300, DangerSeconds: 60}, Callbacks{
		OnWarning: func(r int) { warnings = append(warnings, r) },
		OnDanger:  func(r int) { dangers = append(dangers, r) },
	})
	tm.Anchor(t0)

	for _, s := range []int{10, 299, 300, 301, 400, 539, 540, 541, 580} {
		tm.Poll(t0.Add(time.Duration(s) * time.Second))
	}
	if len(warnings) != 1 || warnings[0] != 300 {
		t.Fatalf("expected one warning at 300s remaining, got %v", warnings)
	}
	if len(dangers) != 1 || dangers[0] != 60 {
		t.Fatalf("expected one danger at 60s remaining, got %v", dangers)
	}
}

func TestFutureStartClampsToFullLimit(t *testing.T) {
	tm := New(Config{LimitSeconds: 120}, Callbacks{})
	tm.Anchor(t0.Add(time.Hour))
	if got := tm.Remaining(t0); got != 120 {
		t.Fatalf("expected full limit under clock skew, got %d", got)
	}
	if got := RemainingAt(time.Time{}, t0, 120, nil); got != 120 {
		t.Fatalf("expected full limit for zero start, got %d", got)
	}
}

func TestStopIsIdempotentAndFinal(t *testing.T) {
	var ticks int32
	tm := New(Config{LimitSeconds: 60, Interval: 5 * time.Millisecond}, Callbacks{
		OnTick: func(int) { atomic.AddInt32(&ticks, 1) },
	})
	tm.Start(time.Now())
	time.Sleep(20 * time.Millisecond)

	tm.Stop()
	tm.Stop()
	after := atomic.LoadInt32(&ticks)
	time.Sleep(30 * time.Millisecond)
	tm.Poll(time.Now())

	if got := atomic.LoadInt32(&ticks); got != after {
		t.Fatalf("callbacks fired after Stop: before=%d after=%d", after, got)
	}
}

func TestExpireCallbackMayStop(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	var tm *Timer
	tm = New(Config{LimitSeconds: 1, Interval: 5 * time.Millisecond}, Callbacks{
		OnExpire: func() {
			tm.Stop()
			wg.Done()
		},
	})
	tm.Start(time.Now().Add(-2 * time.Second))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expiry callback did not complete")
	}
}

func TestFormatAndProgress(t *testing.T) {
	if got := Format(125); got != "02:05" {
		t.Fatalf("expected 02:05, got %s", got)
	}
	if got := Format(-3); got != "00:00" {
		t.Fatalf("expected 00:00, got %s", got)
	}
	tm := New(Config{LimitSeconds: 100}, Callbacks{})
	tm.Anchor(t0)
	if got := tm.Progress(t0.Add(25 * time.Second)); got != 0.25 {
		t.Fatalf("expected 0.25 progress, got %v", got)
	}
	if got := tm.Elapsed(t0.Add(500 * time.Second)); got != 100 {
		t.Fatalf("expected elapsed capped at limit, got %d", got)
	}
}
