package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"exam-simulator/internal/domain"
	"exam-simulator/internal/scorer"
	"exam-simulator/internal/timer"
)

// Controller owns one exam session. Every event runs under its mutex, so a
// dispatch is observed either fully or not at all.
type Controller struct {
	id       string
	settings Settings
	storage  SessionStorage
	history  HistoryStore
	log      zerolog.Logger
	now      func() time.Time
	manual   bool
	timer    *timer.Timer
	onFinish func(*Controller)

	mu          sync.Mutex
	session     domain.Session
	result      *domain.ExamResult
	subscribers map[chan domain.Update]struct{}
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithControllerClock replaces time.Now for the controller and its timer.
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithControllerLogger attaches a logger.
func WithControllerLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// WithManualTimer disables the polling goroutine; the timer advances only
// through Tick.
func WithManualTimer() ControllerOption {
	return func(c *Controller) { c.manual = true }
}

// WithFinishHook registers fn to run once the session finished and its result
// was stored. It runs outside the controller lock.
func WithFinishHook(fn func(*Controller)) ControllerOption {
	return func(c *Controller) { c.onFinish = fn }
}

// NewController wraps session. History may be nil.
func NewController(id string, session domain.Session, settings Settings, storage SessionStorage, history HistoryStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		id:          id,
		settings:    settings,
		storage:     storage,
		history:     history,
		log:         zerolog.Nop(),
		now:         time.Now,
		session:     session,
		subscribers: make(map[chan domain.Update]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "controller").Str("session_id", id).Logger()
	c.timer = timer.New(timer.Config{
		LimitSeconds:   session.TimeLimitSeconds,
		WarningSeconds: settings.WarningSeconds,
		DangerSeconds:  settings.DangerSeconds,
		Interval:       settings.Tick,
	}, timer.Callbacks{
		OnTick:    func(remaining int) { c.notify(domain.UpdateTick, remaining) },
		OnWarning: func(remaining int) { c.notify(domain.UpdateWarning, remaining) },
		OnDanger:  func(remaining int) { c.notify(domain.UpdateDanger, remaining) },
		OnExpire:  c.expire,
	}, timer.WithClock(func() time.Time { return c.now() }), timer.WithLogger(c.log))
	return c
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// Start moves the session into progress and starts its countdown.
func (c *Controller) Start(ctx context.Context) (domain.View, error) {
	view, err := c.Dispatch(ctx, Started())
	if err != nil {
		return view, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Finished() {
		return view, nil
	}
	if c.manual {
		c.timer.Anchor(c.session.StartTime)
	} else {
		c.timer.Start(c.session.StartTime)
	}
	if c.session.State == domain.StatePaused {
		c.timer.Pause(c.session.PausedAt)
	}
	return view, nil
}

// Finished reports whether the session reached its terminal state.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Finished()
}

// Dispatch applies ev. Rejected events leave the session untouched and return
// the current view with the rejection error. An event arriving after the
// deadline finishes the session as expired instead; answers and navigation
// then fail with ErrExamFinished.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (domain.View, error) {
	c.mu.Lock()
	now := c.now()
	if ev.At.IsZero() {
		ev.At = now
	}
	prev := c.session
	var late error
	if c.pastDeadlineLocked(ev, now) {
		if ev.Kind != EventFinishRequested {
			late = domain.ErrExamFinished
		}
		ev = TimerExpired()
	}
	next, err := Transition(prev, ev)
	if err != nil {
		view := c.viewLocked()
		c.mu.Unlock()
		return view, err
	}
	c.session = next

	finishing := !prev.Finished() && next.Finished()
	switch {
	case finishing:
		c.finishLocked(ctx, ev.Kind)
	case ev.Kind == EventAnswerSelected:
		c.persist(persistAnswers(ctx, c.storage, c.id, next))
	case ev.Kind == EventPauseRequested && prev.State != next.State:
		c.timer.Pause(next.PausedAt)
		c.persist(persistPaused(ctx, c.storage, c.id, next))
	case ev.Kind == EventResumeRequested && prev.State != next.State:
		c.timer.Resume(ev.At)
		c.persist(persistUnpaused(ctx, c.storage, c.id, next))
	case ev.Kind == EventTimeExtended:
		c.timer.Extend(next.TimeLimitSeconds)
		c.persist(persistExamData(ctx, c.storage, c.id, next, now))
		c.log.Info().Int("seconds", ev.Seconds).Int("time_limit", next.TimeLimitSeconds).Msg("time extended")
	case next.CurrentIndex != prev.CurrentIndex:
		c.persist(persistIndex(ctx, c.storage, c.id, next))
	}

	view := c.viewLocked()
	if finishing {
		c.broadcastLocked(domain.Update{Type: domain.UpdateFinished, View: &view, Result: c.result})
	} else if ev.Kind != EventStarted || prev.State != next.State {
		c.broadcastLocked(domain.Update{Type: domain.UpdateQuestion, View: &view, RemainingSeconds: view.RemainingSeconds})
	}
	c.mu.Unlock()

	if finishing {
		c.timer.Stop()
		if c.onFinish != nil {
			c.onFinish(c)
		}
	}
	return view, late
}

// pastDeadlineLocked reports whether ev reaches a running session whose time
// is already up but whose expiry was not polled yet.
func (c *Controller) pastDeadlineLocked(ev Event, now time.Time) bool {
	if c.session.State != domain.StateInProgress {
		return false
	}
	switch ev.Kind {
	case EventStarted, EventTimerExpired:
		return false
	}
	return timer.RemainingAt(c.session.StartTime, now, c.session.TimeLimitSeconds, nil) == 0
}

// finishLocked scores the session, persists the result and records history.
func (c *Controller) finishLocked(ctx context.Context, kind EventKind) {
	now := c.now()
	reason := domain.FinishSubmitted
	used := c.timer.Elapsed(now)
	if kind == EventTimerExpired {
		reason = domain.FinishExpired
		used = c.session.TimeLimitSeconds
	}
	result := domain.ExamResult{
		SessionID:       c.id,
		Score:           scorer.Score(c.session.Questions, c.session.Answers, c.settings.PassingThreshold),
		StartedAt:       c.session.StartTime,
		FinishedAt:      now,
		TimeUsedSeconds: used,
		Reason:          reason,
	}
	c.result = &result

	c.persist(setJSON(ctx, c.storage, c.id, KeyResult, result))
	c.persist(clearSession(ctx, c.storage, c.id))
	if c.history != nil {
		if err := c.history.Append(ctx, domain.NewHistoryRecord(result)); err != nil {
			c.log.Warn().Err(err).Msg("record history failed")
		}
	}
	c.log.Info().
		Str("reason", string(reason)).
		Int("correct", result.Score.Correct).
		Int("total", result.Score.Total).
		Int("unanswered", Unanswered(c.session)).
		Bool("passed", result.Score.Passed).
		Msg("exam finished")
}

// persist logs storage failures; the in-memory session stays authoritative.
func (c *Controller) persist(err error) {
	if err != nil {
		c.log.Warn().Err(err).Msg("session persistence failed")
	}
}

func (c *Controller) expire() {
	if _, err := c.Dispatch(context.Background(), TimerExpired()); err != nil && !errors.Is(err, domain.ErrExamNotStarted) {
		c.log.Warn().Err(err).Msg("expire session")
	}
}

func (c *Controller) notify(kind domain.UpdateType, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Finished() {
		return
	}
	c.broadcastLocked(domain.Update{Type: kind, RemainingSeconds: remaining})
}

// Tick polls the countdown at now. It is how manual-timer controllers advance.
func (c *Controller) Tick(now time.Time) int {
	return c.timer.Poll(now)
}

// View returns the current question view.
func (c *Controller) View() domain.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Session returns a copy of the session.
func (c *Controller) Session() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	s.Answers = make(map[int]int, len(c.session.Answers))
	for k, v := range c.session.Answers {
		s.Answers[k] = v
	}
	return s
}

// Result returns the exam result once the session has finished.
func (c *Controller) Result() (domain.ExamResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return domain.ExamResult{}, domain.ErrResultNotReady
	}
	return *c.result, nil
}

func (c *Controller) viewLocked() domain.View {
	s := c.session
	view := domain.View{
		SessionID: c.id,
		Index:     s.CurrentIndex,
		Total:     len(s.Questions),
		Answered:  len(s.Answers),
		State:     s.State.String(),

		TimeLimitSeconds: s.TimeLimitSeconds,
	}
	switch {
	case s.Finished():
		view.RemainingSeconds = 0
		if c.result != nil && s.TimeLimitSeconds > 0 {
			view.Progress = float64(c.result.TimeUsedSeconds) / float64(s.TimeLimitSeconds)
		}
	case s.State == domain.StatePaused:
		view.RemainingSeconds = timer.RemainingAt(s.StartTime, s.PausedAt, s.TimeLimitSeconds, nil)
		view.Progress = c.timer.Progress(s.PausedAt)
	default:
		now := c.now()
		view.RemainingSeconds = timer.RemainingAt(s.StartTime, now, s.TimeLimitSeconds, nil)
		view.Progress = c.timer.Progress(now)
	}
	if s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Questions) {
		q := s.Questions[s.CurrentIndex]
		view.Question = domain.NewPublicQuestion(q)
		if choice, ok := s.Answers[q.ID]; ok {
			view.SelectedChoiceID = &choice
		}
	}
	return view
}

// Subscribe returns a channel of updates primed with the current view. The
// caller must invoke cancel to release it.
func (c *Controller) Subscribe() (<-chan domain.Update, func()) {
	ch := make(chan domain.Update, 16)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	view := c.viewLocked()
	initial := domain.Update{Type: domain.UpdateQuestion, View: &view, RemainingSeconds: view.RemainingSeconds}
	if c.result != nil {
		initial = domain.Update{Type: domain.UpdateFinished, View: &view, Result: c.result}
	}
	ch <- initial
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// broadcastLocked delivers u to every subscriber, dropping the oldest queued
// update of a subscriber that has fallen behind.
func (c *Controller) broadcastLocked(u domain.Update) {
	for ch := range c.subscribers {
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

// Close stops the countdown and closes every subscription. The session itself
// is left as is.
func (c *Controller) Close() {
	c.timer.Stop()
	c.mu.Lock()
	for ch := range c.subscribers {
		delete(c.subscribers, ch)
		close(ch)
	}
	c.mu.Unlock()
}
