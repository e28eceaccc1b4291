package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"exam-simulator/internal/domain"
)

// Storage keys of a persisted session.
const (
	KeyAnswers         = "exam_answers"
	KeyStartTime       = "exam_start_time"
	KeyCurrentQuestion = "current_question_index"
	KeyExamData        = "exam_data"
	KeyPausedAt        = "exam_paused_at"
	KeyResult          = "exam_result"
)

// SessionKeys are cleared when an exam finishes or is reset.
var SessionKeys = []string{KeyAnswers, KeyStartTime, KeyCurrentQuestion, KeyExamData, KeyPausedAt}

// SessionStorage is a string-keyed, JSON-valued store scoped per session.
type SessionStorage interface {
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Delete(ctx context.Context, sessionID string, keys ...string) error
}

// examData is the snapshot written at session creation and rewritten when the
// time limit is extended.
type examData struct {
	Questions []domain.Question `json:"questions"`
	StartTime time.Time         `json:"startTime"`
	TimeLimit int               `json:"timeLimit"`
	SavedAt   time.Time         `json:"savedAt"`
}

func setJSON(ctx context.Context, st SessionStorage, sessionID, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := st.Set(ctx, sessionID, key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// persistCreated writes the full snapshot of a freshly created session.
func persistCreated(ctx context.Context, st SessionStorage, sessionID string, s domain.Session, now time.Time) error {
	if err := persistExamData(ctx, st, sessionID, s, now); err != nil {
		return err
	}
	if err := persistStartTime(ctx, st, sessionID, s); err != nil {
		return err
	}
	if err := persistAnswers(ctx, st, sessionID, s); err != nil {
		return err
	}
	return persistIndex(ctx, st, sessionID, s)
}

func persistExamData(ctx context.Context, st SessionStorage, sessionID string, s domain.Session, now time.Time) error {
	data := examData{Questions: s.Questions, StartTime: s.StartTime, TimeLimit: s.TimeLimitSeconds, SavedAt: now}
	return setJSON(ctx, st, sessionID, KeyExamData, data)
}

func persistStartTime(ctx context.Context, st SessionStorage, sessionID string, s domain.Session) error {
	return setJSON(ctx, st, sessionID, KeyStartTime, formatTime(s.StartTime))
}

func persistPaused(ctx context.Context, st SessionStorage, sessionID string, s domain.Session) error {
	return setJSON(ctx, st, sessionID, KeyPausedAt, formatTime(s.PausedAt))
}

// persistUnpaused stores the shifted start time before dropping the pause mark.
func persistUnpaused(ctx context.Context, st SessionStorage, sessionID string, s domain.Session) error {
	if err := persistStartTime(ctx, st, sessionID, s); err != nil {
		return err
	}
	if err := st.Delete(ctx, sessionID, KeyPausedAt); err != nil {
		return fmt.Errorf("clear %s: %w", KeyPausedAt, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func persistAnswers(ctx context.Context, st SessionStorage, sessionID string, s domain.Session) error {
	return setJSON(ctx, st, sessionID, KeyAnswers, s.Answers)
}

func persistIndex(ctx context.Context, st SessionStorage, sessionID string, s domain.Session) error {
	return setJSON(ctx, st, sessionID, KeyCurrentQuestion, s.CurrentIndex)
}

func clearSession(ctx context.Context, st SessionStorage, sessionID string) error {
	if err := st.Delete(ctx, sessionID, SessionKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Resume rebuilds a session from storage. It fails with ErrNoPersistedSession,
// ErrSessionExpired or ErrResumeMismatch; callers fall back to a fresh session.
// Remaining time is always derived from the persisted start time.
func Resume(ctx context.Context, st SessionStorage, sessionID string, bank domain.Bank, now time.Time) (domain.Session, error) {
	raw, ok, err := st.Get(ctx, sessionID, KeyExamData)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load exam data: %w", err)
	}
	if !ok {
		return domain.Session{}, domain.ErrNoPersistedSession
	}
	var data examData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Session{}, fmt.Errorf("%w: decode exam data: %v", domain.ErrResumeMismatch, err)
	}
	if len(data.Questions) == 0 || data.TimeLimit <= 0 {
		return domain.Session{}, fmt.Errorf("%w: empty snapshot", domain.ErrResumeMismatch)
	}

	start := data.StartTime
	if rawStart, ok, err := st.Get(ctx, sessionID, KeyStartTime); err == nil && ok {
		if parsed, perr := parseStartTime(rawStart); perr == nil {
			start = parsed
		}
	}
	if start.IsZero() {
		return domain.Session{}, fmt.Errorf("%w: missing start time", domain.ErrResumeMismatch)
	}
	// A paused session's clock stood still at the pause mark.
	var pausedAt time.Time
	if rawPaused, ok, err := st.Get(ctx, sessionID, KeyPausedAt); err == nil && ok {
		if parsed, perr := parseStartTime(rawPaused); perr == nil && !parsed.After(now) {
			pausedAt = parsed
		}
	}
	at := now
	if !pausedAt.IsZero() {
		at = pausedAt
	}
	if !start.After(at) && at.Sub(start) >= time.Duration(data.TimeLimit)*time.Second {
		return domain.Session{}, domain.ErrSessionExpired
	}

	if err := matchBank(data.Questions, bank); err != nil {
		return domain.Session{}, err
	}

	s := domain.Session{
		Questions:        data.Questions,
		Answers:          make(map[int]int),
		StartTime:        start,
		TimeLimitSeconds: data.TimeLimit,
		State:            domain.StateInProgress,
	}
	if !pausedAt.IsZero() {
		s.State = domain.StatePaused
		s.PausedAt = pausedAt
	}

	if rawAnswers, ok, err := st.Get(ctx, sessionID, KeyAnswers); err != nil {
		return domain.Session{}, fmt.Errorf("load answers: %w", err)
	} else if ok {
		var answers map[int]int
		if err := json.Unmarshal(rawAnswers, &answers); err != nil {
			return domain.Session{}, fmt.Errorf("%w: decode answers: %v", domain.ErrResumeMismatch, err)
		}
		for qid, cid := range answers {
			q, found := s.QuestionByID(qid)
			if !found || !q.HasChoice(cid) {
				return domain.Session{}, fmt.Errorf("%w: answer for unknown question %d", domain.ErrResumeMismatch, qid)
			}
			s.Answers[qid] = cid
		}
	}

	if rawIndex, ok, err := st.Get(ctx, sessionID, KeyCurrentQuestion); err == nil && ok {
		var index int
		if json.Unmarshal(rawIndex, &index) == nil {
			s = GoTo(s, index)
		}
	}
	return s, nil
}

// matchBank checks that every snapshot question still exists unchanged in bank.
func matchBank(questions []domain.Question, bank domain.Bank) error {
	byID := make(map[int]domain.Question, len(bank.Questions))
	for _, q := range bank.Questions {
		byID[q.ID] = q
	}
	for _, q := range questions {
		current, ok := byID[q.SourceID()]
		if !ok {
			return fmt.Errorf("%w: question %d no longer in bank %q", domain.ErrResumeMismatch, q.SourceID(), bank.ID)
		}
		if current.CorrectChoiceID != q.CorrectChoiceID || len(current.Choices) != len(q.Choices) {
			return fmt.Errorf("%w: question %d changed in bank %q", domain.ErrResumeMismatch, q.SourceID(), bank.ID)
		}
	}
	return nil
}

// parseStartTime accepts a JSON string (RFC3339) or a JSON number of epoch milliseconds.
func parseStartTime(raw []byte) (time.Time, error) {
	text := strings.TrimSpace(string(raw))
	var s string
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		text = s
	}
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339Nano, text)
}

// LoadResult reads a persisted exam result.
func LoadResult(ctx context.Context, st SessionStorage, sessionID string) (domain.ExamResult, error) {
	raw, ok, err := st.Get(ctx, sessionID, KeyResult)
	if err != nil {
		return domain.ExamResult{}, err
	}
	if !ok {
		return domain.ExamResult{}, domain.ErrResultNotReady
	}
	var result domain.ExamResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.ExamResult{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}
