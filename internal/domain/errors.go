package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when no live session exists for an id.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrNoQuestions is returned when neither ranked nor basic data yields a question.
	ErrNoQuestions = errors.New("no questions available")
	// ErrQuestionNotFound indicates an answer referenced a question outside the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrChoiceNotFound indicates an answer referenced a choice outside the question.
	ErrChoiceNotFound = errors.New("choice not found")
	// ErrExamFinished is returned for mutations after the exam reached its terminal state.
	ErrExamFinished = errors.New("exam already finished")
	// ErrExamNotStarted is returned for mutations before the exam started.
	ErrExamNotStarted = errors.New("exam not started")
	// ErrExamPaused is returned for answers and navigation while the clock is paused.
	ErrExamPaused = errors.New("exam is paused")
	// ErrInvalidExtension is returned for a time extension that is not positive.
	ErrInvalidExtension = errors.New("time extension must be positive")
	// ErrResultNotReady is returned when a result is requested before finish.
	ErrResultNotReady = errors.New("exam result not available")

	// ErrNoPersistedSession means storage holds nothing to resume.
	ErrNoPersistedSession = errors.New("no persisted session")
	// ErrSessionExpired means the persisted session ran past its time limit.
	ErrSessionExpired = errors.New("persisted session expired")
	// ErrResumeMismatch means the persisted session does not fit the current bank.
	ErrResumeMismatch = errors.New("persisted session does not match question bank")
)

// IntegrityProblem describes one defect of a question record.
type IntegrityProblem struct {
	Index      int
	QuestionID int
	Reason     string
}

// DataIntegrityError reports a malformed question bank. Banks with problems are
// never partially loaded.
type DataIntegrityError struct {
	BankID   string
	Problems []IntegrityProblem
}

func (e *DataIntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bank %q has %d integrity problem(s)", e.BankID, len(e.Problems))
	for i, p := range e.Problems {
		if i == 5 {
			fmt.Fprintf(&b, "; ...")
			break
		}
		fmt.Fprintf(&b, "; question #%d (id %d): %s", p.Index, p.QuestionID, p.Reason)
	}
	return b.String()
}
