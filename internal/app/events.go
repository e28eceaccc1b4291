package app

import (
	"fmt"
	"time"
)

// EventKind enumerates the inbound events the exam state machine accepts.
type EventKind int

const (
	EventStarted EventKind = iota
	EventAnswerSelected
	EventNavigateTo
	EventNextRequested
	EventPreviousRequested
	EventFinishRequested
	EventTimerExpired
	EventPauseRequested
	EventResumeRequested
	EventTimeExtended
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventAnswerSelected:
		return "answer_selected"
	case EventNavigateTo:
		return "navigate_to"
	case EventNextRequested:
		return "next_requested"
	case EventPreviousRequested:
		return "previous_requested"
	case EventFinishRequested:
		return "finish_requested"
	case EventTimerExpired:
		return "timer_expired"
	case EventPauseRequested:
		return "pause_requested"
	case EventResumeRequested:
		return "resume_requested"
	case EventTimeExtended:
		return "time_extended"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one inbound interaction. Only the fields relevant to Kind are read.
// At stamps pause and resume events; a controller fills it in when zero.
type Event struct {
	Kind       EventKind
	QuestionID int
	ChoiceID   int
	Index      int
	Seconds    int
	At         time.Time
}

func Started() Event           { return Event{Kind: EventStarted} }
func NextRequested() Event     { return Event{Kind: EventNextRequested} }
func PreviousRequested() Event { return Event{Kind: EventPreviousRequested} }
func FinishRequested() Event   { return Event{Kind: EventFinishRequested} }
func TimerExpired() Event      { return Event{Kind: EventTimerExpired} }

func AnswerSelected(questionID, choiceID int) Event {
	return Event{Kind: EventAnswerSelected, QuestionID: questionID, ChoiceID: choiceID}
}

func NavigateTo(index int) Event {
	return Event{Kind: EventNavigateTo, Index: index}
}

func PauseRequested() Event  { return Event{Kind: EventPauseRequested} }
func ResumeRequested() Event { return Event{Kind: EventResumeRequested} }

// TimeExtended adds seconds to the time limit.
func TimeExtended(seconds int) Event {
	return Event{Kind: EventTimeExtended, Seconds: seconds}
}
