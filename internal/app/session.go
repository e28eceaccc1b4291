package app

import (
	"time"

	"exam-simulator/internal/domain"
)

// transitions is the exam state machine. Events missing from a state's row are
// rejected without touching the session.
var transitions = map[domain.State]map[EventKind]domain.State{
	domain.StateNotStarted: {
		EventStarted: domain.StateInProgress,
	},
	domain.StateInProgress: {
		EventAnswerSelected:    domain.StateInProgress,
		EventNavigateTo:        domain.StateInProgress,
		EventNextRequested:     domain.StateInProgress,
		EventPreviousRequested: domain.StateInProgress,
		EventPauseRequested:    domain.StatePaused,
		EventTimeExtended:      domain.StateInProgress,
		EventFinishRequested:   domain.StateFinished,
		EventTimerExpired:      domain.StateFinished,
	},
	domain.StatePaused: {
		EventResumeRequested: domain.StateInProgress,
		EventTimeExtended:    domain.StatePaused,
		EventFinishRequested: domain.StateFinished,
		EventTimerExpired:    domain.StateFinished,
	},
	domain.StateFinished: {},
}

// Transition applies ev to s and returns the next session. Rejected events
// return s unchanged with ErrExamNotStarted, ErrExamPaused or ErrExamFinished;
// repeated start, pause, resume and finish events are silent no-ops.
func Transition(s domain.Session, ev Event) (domain.Session, error) {
	if _, ok := transitions[s.State][ev.Kind]; !ok {
		switch {
		case ev.Kind == EventStarted:
			return s, nil
		case s.State == domain.StateFinished && (ev.Kind == EventFinishRequested || ev.Kind == EventTimerExpired):
			return s, nil
		case s.State == domain.StateFinished:
			return s, domain.ErrExamFinished
		case s.State == domain.StatePaused && ev.Kind == EventPauseRequested:
			return s, nil
		case s.State == domain.StateInProgress && ev.Kind == EventResumeRequested:
			return s, nil
		case s.State == domain.StatePaused:
			return s, domain.ErrExamPaused
		default:
			return s, domain.ErrExamNotStarted
		}
	}

	switch ev.Kind {
	case EventStarted:
		return Start(s), nil
	case EventAnswerSelected:
		return Answer(s, ev.QuestionID, ev.ChoiceID)
	case EventNavigateTo:
		return GoTo(s, ev.Index), nil
	case EventNextRequested:
		return Next(s), nil
	case EventPreviousRequested:
		return Previous(s), nil
	case EventPauseRequested:
		return Pause(s, ev.At), nil
	case EventResumeRequested:
		return Unpause(s, ev.At), nil
	case EventTimeExtended:
		return Extend(s, ev.Seconds)
	case EventFinishRequested, EventTimerExpired:
		return Finish(s), nil
	}
	return s, nil
}

// Create builds a not-yet-started session over questions.
func Create(questions []domain.Question, startTime time.Time, timeLimitSeconds int) domain.Session {
	return domain.Session{
		Questions:        questions,
		Answers:          make(map[int]int),
		CurrentIndex:     0,
		StartTime:        startTime,
		TimeLimitSeconds: timeLimitSeconds,
		State:            domain.StateNotStarted,
	}
}

// Start moves a new session into progress.
func Start(s domain.Session) domain.Session {
	if s.State == domain.StateNotStarted {
		s.State = domain.StateInProgress
	}
	return s
}

// Answer records choiceID for questionID. The input session is not modified.
func Answer(s domain.Session, questionID, choiceID int) (domain.Session, error) {
	if s.Finished() {
		return s, domain.ErrExamFinished
	}
	q, ok := s.QuestionByID(questionID)
	if !ok {
		return s, domain.ErrQuestionNotFound
	}
	if !q.HasChoice(choiceID) {
		return s, domain.ErrChoiceNotFound
	}
	answers := make(map[int]int, len(s.Answers)+1)
	for k, v := range s.Answers {
		answers[k] = v
	}
	answers[questionID] = choiceID
	s.Answers = answers
	return s, nil
}

// GoTo moves to index; out-of-range indexes and finished sessions are no-ops.
func GoTo(s domain.Session, index int) domain.Session {
	if s.Finished() || index < 0 || index >= len(s.Questions) {
		return s
	}
	s.CurrentIndex = index
	return s
}

// Next advances one question, staying on the last one.
func Next(s domain.Session) domain.Session {
	return GoTo(s, s.CurrentIndex+1)
}

// Previous steps back one question, staying on the first one.
func Previous(s domain.Session) domain.Session {
	return GoTo(s, s.CurrentIndex-1)
}

// Pause freezes the clock at at.
func Pause(s domain.Session, at time.Time) domain.Session {
	if s.State != domain.StateInProgress {
		return s
	}
	s.State = domain.StatePaused
	s.PausedAt = at
	return s
}

// Unpause restarts the clock at at. The start time moves forward by the paused
// span, so remaining time keeps deriving from StartTime alone.
func Unpause(s domain.Session, at time.Time) domain.Session {
	if s.State != domain.StatePaused {
		return s
	}
	if at.After(s.PausedAt) {
		s.StartTime = s.StartTime.Add(at.Sub(s.PausedAt))
	}
	s.State = domain.StateInProgress
	s.PausedAt = time.Time{}
	return s
}

// Extend adds seconds to the time limit.
func Extend(s domain.Session, seconds int) (domain.Session, error) {
	if s.Finished() {
		return s, domain.ErrExamFinished
	}
	if seconds <= 0 {
		return s, domain.ErrInvalidExtension
	}
	s.TimeLimitSeconds += seconds
	return s, nil
}

// Finish marks the session terminal. Finishing twice changes nothing.
func Finish(s domain.Session) domain.Session {
	s.State = domain.StateFinished
	s.PausedAt = time.Time{}
	return s
}

// Unanswered counts questions without a recorded answer.
func Unanswered(s domain.Session) int {
	n := 0
	for _, q := range s.Questions {
		if _, ok := s.Answers[q.ID]; !ok {
			n++
		}
	}
	return n
}
