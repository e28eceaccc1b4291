package app_test

import (
	"errors"
	"testing"
	"time"

	"exam-simulator/internal/app"
	"exam-simulator/internal/domain"
)

func TestTransitionRequiresStart(t *testing.T) {
	s := app.Create(twoQuestions(), t0, 60)

	next, err := app.Transition(s, app.AnswerSelected(1, 2))
	if !errors.Is(err, domain.ErrExamNotStarted) {
		t.Fatalf("expected ErrExamNotStarted, got %v", err)
	}
	if len(next.Answers) != 0 || next.State != domain.StateNotStarted {
		t.Fatalf("rejected event must not change session: %+v", next)
	}

	started, err := app.Transition(s, app.Started())
	if err != nil || started.State != domain.StateInProgress {
		t.Fatalf("expected in progress after start, got %v %v", started.State, err)
	}
	again, err := app.Transition(started, app.Started())
	if err != nil || again.State != domain.StateInProgress {
		t.Fatalf("repeated start should be a no-op, got %v %v", again.State, err)
	}
}

func TestTransitionAnswerValidation(t *testing.T) {
	s, _ := app.Transition(app.Create(twoQuestions(), t0, 60), app.Started())

	if _, err := app.Transition(s, app.AnswerSelected(9, 1)); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if _, err := app.Transition(s, app.AnswerSelected(1, 7)); !errors.Is(err, domain.ErrChoiceNotFound) {
		t.Fatalf("expected ErrChoiceNotFound, got %v", err)
	}

	answered, err := app.Transition(s, app.AnswerSelected(1, 2))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answered.Answers[1] != 2 {
		t.Fatalf("expected answer recorded, got %+v", answered.Answers)
	}
	if len(s.Answers) != 0 {
		t.Fatalf("input session must stay untouched, got %+v", s.Answers)
	}

	changed, _ := app.Transition(answered, app.AnswerSelected(1, 3))
	if changed.Answers[1] != 3 || len(changed.Answers) != 1 {
		t.Fatalf("expected answer replaced, got %+v", changed.Answers)
	}
}

func TestTransitionNavigation(t *testing.T) {
	s, _ := app.Transition(app.Create(twoQuestions(), t0, 60), app.Started())

	s, _ = app.Transition(s, app.PreviousRequested())
	if s.CurrentIndex != 0 {
		t.Fatalf("previous on first question should stay, got %d", s.CurrentIndex)
	}
	s, _ = app.Transition(s, app.NextRequested())
	s, _ = app.Transition(s, app.NextRequested())
	if s.CurrentIndex != 1 {
		t.Fatalf("next on last question should stay, got %d", s.CurrentIndex)
	}
	for _, idx := range []int{-1, 2, 100} {
		next, err := app.Transition(s, app.NavigateTo(idx))
		if err != nil || next.CurrentIndex != 1 {
			t.Fatalf("out of range navigate %d should be a no-op, got %d %v", idx, next.CurrentIndex, err)
		}
	}
	s, _ = app.Transition(s, app.NavigateTo(0))
	if s.CurrentIndex != 0 {
		t.Fatalf("expected index 0, got %d", s.CurrentIndex)
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	s, _ := app.Transition(app.Create(twoQuestions(), t0, 60), app.Started())
	s, _ = app.Transition(s, app.AnswerSelected(1, 2))

	once, err := app.Transition(s, app.FinishRequested())
	if err != nil || !once.Finished() {
		t.Fatalf("expected finished, got %v %v", once.State, err)
	}
	twice, err := app.Transition(once, app.FinishRequested())
	if err != nil {
		t.Fatalf("second finish should not error: %v", err)
	}
	expired, err := app.Transition(twice, app.TimerExpired())
	if err != nil {
		t.Fatalf("expiry after finish should not error: %v", err)
	}
	if !expired.Finished() || len(expired.Answers) != 1 || expired.Answers[1] != 2 {
		t.Fatalf("repeated finish changed the session: %+v", expired)
	}

	if _, err := app.Transition(expired, app.AnswerSelected(2, 3)); !errors.Is(err, domain.ErrExamFinished) {
		t.Fatalf("expected ErrExamFinished, got %v", err)
	}
	if _, err := app.Transition(expired, app.NextRequested()); !errors.Is(err, domain.ErrExamFinished) {
		t.Fatalf("expected ErrExamFinished for navigation, got %v", err)
	}
}

func TestUnanswered(t *testing.T) {
	s, _ := app.Transition(app.Create(twoQuestions(), t0, 60), app.Started())
	if app.Unanswered(s) != 2 {
		t.Fatalf("expected 2 unanswered")
	}
	s, _ = app.Transition(s, app.AnswerSelected(2, 1))
	if app.Unanswered(s) != 1 {
		t.Fatalf("expected 1 unanswered")
	}
}

func TestTransitionPauseAndResume(t *testing.T) {
	s, _ := app.Transition(app.Create(twoQuestions(), t0, 60), app.Started())

	pause := app.PauseRequested()
	pause.At = t0.Add(10 * time.Second)
	paused, err := app.Transition(s, pause)
	if err != nil || paused.State != domain.StatePaused || !paused.PausedAt.Equal(pause.At) {
		t.Fatalf("expected paused session, got %+v %v", paused, err)
	}
	if again, err := app.Transition(paused, pause); err != nil || again.State != domain.StatePaused {
		t.Fatalf("repeated pause should be a no-op, got %v %v", again.State, err)
	}
	for _, ev := range []app.Event{app.AnswerSelected(1, 2), app.NextRequested(), app.NavigateTo(1)} {
		if _, err := app.Transition(paused, ev); !errors.Is(err, domain.ErrExamPaused) {
			t.Fatalf("%s while paused: expected ErrExamPaused, got %v", ev.Kind, err)
		}
	}

	resume := app.ResumeRequested()
	resume.At = t0.Add(70 * time.Second)
	running, err := app.Transition(paused, resume)
	if err != nil || running.State != domain.StateInProgress {
		t.Fatalf("expected running session, got %v %v", running.State, err)
	}
	if !running.StartTime.Equal(t0.Add(60*time.Second)) || !running.PausedAt.IsZero() {
		t.Fatalf("expected start shifted by the pause, got %v (paused at %v)", running.StartTime, running.PausedAt)
	}
	if same, err := app.Transition(running, resume); err != nil || !same.StartTime.Equal(running.StartTime) {
		t.Fatalf("resume while running should be a no-op, got %v %v", same.StartTime, err)
	}

	if finished, err := app.Transition(paused, app.FinishRequested()); err != nil || !finished.Finished() {
		t.Fatalf("a paused exam can be submitted, got %v %v", finished.State, err)
	}
}

func TestTransitionExtend(t *testing.T) {
	s := app.Create(twoQuestions(), t0, 60)
	if _, err := app.Transition(s, app.TimeExtended(30)); !errors.Is(err, domain.ErrExamNotStarted) {
		t.Fatalf("expected ErrExamNotStarted, got %v", err)
	}
	s, _ = app.Transition(s, app.Started())

	extended, err := app.Transition(s, app.TimeExtended(30))
	if err != nil || extended.TimeLimitSeconds != 90 {
		t.Fatalf("expected 90s limit, got %d %v", extended.TimeLimitSeconds, err)
	}
	if same, err := app.Transition(extended, app.TimeExtended(0)); !errors.Is(err, domain.ErrInvalidExtension) || same.TimeLimitSeconds != 90 {
		t.Fatalf("expected ErrInvalidExtension and no change, got %d %v", same.TimeLimitSeconds, err)
	}
	if s.TimeLimitSeconds != 60 {
		t.Fatalf("input session must stay untouched, got %d", s.TimeLimitSeconds)
	}
}
