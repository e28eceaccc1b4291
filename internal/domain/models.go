package domain

import "time"

// Rank is an importance tier; A is the most frequent/important, D the least.
type Rank string

const (
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
	RankD Rank = "D"
)

// DefaultRank is used for questions that carry no rank.
const DefaultRank = RankD

// Ranks lists every rank in priority order.
var Ranks = []Rank{RankA, RankB, RankC, RankD}

// Valid reports whether r is one of the known ranks.
func (r Rank) Valid() bool {
	switch r {
	case RankA, RankB, RankC, RankD:
		return true
	}
	return false
}

// OrDefault returns r, or DefaultRank when r is empty.
func (r Rank) OrDefault() Rank {
	if r == "" {
		return DefaultRank
	}
	return r
}

// RankWeights maps a rank to the fraction of an exam drawn from it.
type RankWeights map[Rank]float64

// Choice is one selectable answer of a question.
type Choice struct {
	ID   int    `json:"id" yaml:"id" validate:"gt=0"`
	Text string `json:"text" yaml:"text" validate:"required"`
}

// Question models a multiple-choice question with exactly one correct choice.
type Question struct {
	ID              int      `json:"id" yaml:"id" validate:"gt=0"`
	OriginalID      int      `json:"originalId,omitempty" yaml:"originalId,omitempty"`
	Rank            Rank     `json:"rank,omitempty" yaml:"rank,omitempty" validate:"omitempty,oneof=A B C D"`
	Statement       string   `json:"statement" yaml:"statement" validate:"required"`
	Choices         []Choice `json:"choices" yaml:"choices" validate:"min=2,dive"`
	CorrectChoiceID int      `json:"answerId" yaml:"answerId" validate:"gt=0"`
	Explanation     string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// HasChoice reports whether choiceID belongs to the question.
func (q Question) HasChoice(choiceID int) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

// SourceID returns the id the question carries in its bank.
func (q Question) SourceID() int {
	if q.OriginalID != 0 {
		return q.OriginalID
	}
	return q.ID
}

// Bank is a named question collection.
type Bank struct {
	ID        string     `json:"id" yaml:"id"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// State is the lifecycle phase of an exam session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StatePaused
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// Session is one exam attempt. Values are treated as immutable; transitions
// return a modified copy.
type Session struct {
	Questions        []Question
	Answers          map[int]int
	CurrentIndex     int
	StartTime        time.Time
	TimeLimitSeconds int
	State            State
	// PausedAt is set while State is StatePaused.
	PausedAt time.Time
}

// Finished reports whether the session reached its terminal state.
func (s Session) Finished() bool {
	return s.State == StateFinished
}

// QuestionByID returns the session question with the given display id.
func (s Session) QuestionByID(id int) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// RankStat aggregates correctness for one rank.
type RankStat struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// QuestionResult is the per-question outcome of scoring.
type QuestionResult struct {
	Number          int    `json:"number"`
	QuestionID      int    `json:"questionId"`
	OriginalID      int    `json:"originalId"`
	Rank            Rank   `json:"rank"`
	Statement       string `json:"statement"`
	SelectedChoice  *int   `json:"selectedChoiceId,omitempty"`
	CorrectChoiceID int    `json:"correctChoiceId"`
	Correct         bool   `json:"correct"`
	Explanation     string `json:"explanation,omitempty"`
}

// ScoreResult is a read-only snapshot produced once when an exam finishes.
type ScoreResult struct {
	Total      int               `json:"total"`
	Correct    int               `json:"correct"`
	Unanswered int               `json:"unanswered"`
	Percentage int               `json:"percentage"`
	Passed     bool              `json:"passed"`
	PerRank    map[Rank]RankStat `json:"perRank"`
	Details    []QuestionResult  `json:"details"`
}

// FinishReason records why an exam ended.
type FinishReason string

const (
	FinishSubmitted FinishReason = "submitted"
	FinishExpired   FinishReason = "expired"
)

// ExamResult is handed to the results view once a session finishes.
type ExamResult struct {
	SessionID       string       `json:"sessionId"`
	Score           ScoreResult  `json:"score"`
	StartedAt       time.Time    `json:"startedAt"`
	FinishedAt      time.Time    `json:"finishedAt"`
	TimeUsedSeconds int          `json:"timeUsedSeconds"`
	Reason          FinishReason `json:"reason"`
}

// HistoryRecord is a compact entry of past exam outcomes.
type HistoryRecord struct {
	SessionID       string    `json:"sessionId"`
	FinishedAt      time.Time `json:"finishedAt"`
	Correct         int       `json:"correct"`
	Total           int       `json:"total"`
	Percentage      int       `json:"percentage"`
	Passed          bool      `json:"passed"`
	TimeUsedSeconds int       `json:"timeUsedSeconds"`
}

// NewHistoryRecord condenses a result.
func NewHistoryRecord(r ExamResult) HistoryRecord {
	return HistoryRecord{
		SessionID:       r.SessionID,
		FinishedAt:      r.FinishedAt,
		Correct:         r.Score.Correct,
		Total:           r.Score.Total,
		Percentage:      r.Score.Percentage,
		Passed:          r.Score.Passed,
		TimeUsedSeconds: r.TimeUsedSeconds,
	}
}

// PublicChoice and PublicQuestion are the presentation-safe projections; the
// correct answer never leaves the core before the exam finishes.
type PublicChoice struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type PublicQuestion struct {
	ID        int            `json:"id"`
	Rank      Rank           `json:"rank,omitempty"`
	Statement string         `json:"statement"`
	Choices   []PublicChoice `json:"choices"`
}

// NewPublicQuestion strips answer data from q.
func NewPublicQuestion(q Question) PublicQuestion {
	choices := make([]PublicChoice, 0, len(q.Choices))
	for _, c := range q.Choices {
		choices = append(choices, PublicChoice{ID: c.ID, Text: c.Text})
	}
	return PublicQuestion{ID: q.ID, Rank: q.Rank, Statement: q.Statement, Choices: choices}
}

// View is what the presentation layer renders for the current question.
type View struct {
	SessionID        string         `json:"sessionId"`
	Question         PublicQuestion `json:"question"`
	Index            int            `json:"index"`
	Total            int            `json:"total"`
	SelectedChoiceID *int           `json:"selectedChoiceId,omitempty"`
	Answered         int            `json:"answered"`
	RemainingSeconds int            `json:"remainingSeconds"`
	TimeLimitSeconds int            `json:"timeLimitSeconds"`
	Progress         float64        `json:"progress"`
	State            string         `json:"state"`
}

// UpdateType tags controller notifications.
type UpdateType string

const (
	UpdateQuestion UpdateType = "question"
	UpdateTick     UpdateType = "tick"
	UpdateWarning  UpdateType = "warning"
	UpdateDanger   UpdateType = "danger"
	UpdateFinished UpdateType = "finished"
)

// Update is pushed to subscribers of a running session.
type Update struct {
	Type             UpdateType  `json:"type"`
	View             *View       `json:"view,omitempty"`
	RemainingSeconds int         `json:"remainingSeconds"`
	Result           *ExamResult `json:"result,omitempty"`
}
