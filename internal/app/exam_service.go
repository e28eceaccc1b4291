package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"exam-simulator/internal/bank"
	"exam-simulator/internal/domain"
	"exam-simulator/internal/sampler"
)

// Settings are the exam parameters a service applies to new sessions.
type Settings struct {
	DefaultBank      string
	QuestionCount    int
	TimeLimitSeconds int
	PassingThreshold float64
	Weights          domain.RankWeights
	RankFilter       domain.Rank
	WarningSeconds   int
	DangerSeconds    int
	Tick             time.Duration
	HistoryLimit     int
}

// ControllerRepository tracks live controllers (in-memory, etc).
type ControllerRepository interface {
	GetOrCreate(sessionID string, create func() (*Controller, error)) (*Controller, bool, error)
	Get(sessionID string) (*Controller, bool)
	Delete(sessionID string)
}

// BankRepository loads question banks (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// BankInvalidator is implemented by bank repositories that cache banks.
type BankInvalidator interface {
	Invalidate(ctx context.Context, bankID string) error
}

// HistoryStore keeps compact records of finished exams.
type HistoryStore interface {
	Append(ctx context.Context, rec domain.HistoryRecord) error
	Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
}

// ExamService contains the exam use cases.
type ExamService struct {
	controllers ControllerRepository
	banks       BankRepository
	storage     SessionStorage
	history     HistoryStore
	sampler     *sampler.Sampler
	settings    Settings
	log         zerolog.Logger
	now         func() time.Time
	manual      bool
}

// ServiceOption customizes an ExamService.
type ServiceOption func(*ExamService)

func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *ExamService) { s.log = log }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ExamService) { s.now = now }
}

func WithSampler(smp *sampler.Sampler) ServiceOption {
	return func(s *ExamService) { s.sampler = smp }
}

// WithManualTimers makes every controller advance only through Tick.
func WithManualTimers() ServiceOption {
	return func(s *ExamService) { s.manual = true }
}

func NewExamService(controllers ControllerRepository, banks BankRepository, storage SessionStorage, history HistoryStore, settings Settings, opts ...ServiceOption) *ExamService {
	s := &ExamService{
		controllers: controllers,
		banks:       banks,
		storage:     storage,
		history:     history,
		settings:    settings,
		log:         zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampler == nil {
		s.sampler = sampler.New()
	}
	s.log = s.log.With().Str("component", "exam_service").Logger()
	return s
}

// Open returns the live session for sessionID, resuming a persisted one or
// creating a fresh one as needed. An empty sessionID allocates a new id.
func (s *ExamService) Open(ctx context.Context, sessionID, bankID string) (domain.View, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if bankID == "" {
		bankID = s.settings.DefaultBank
	}

	ctrl, _, err := s.controllers.GetOrCreate(sessionID, func() (*Controller, error) {
		return s.newController(ctx, sessionID, bankID)
	})
	if err != nil {
		return domain.View{}, err
	}
	view := ctrl.View()
	// A session can expire while it is being registered; its finish hook then
	// found nothing to evict.
	if ctrl.Finished() {
		s.evict(ctrl)
	}
	return view, nil
}

// evict drops a finished controller. Its result stays in storage for Result.
func (s *ExamService) evict(ctrl *Controller) {
	if cur, ok := s.controllers.Get(ctrl.ID()); ok && cur == ctrl {
		s.controllers.Delete(ctrl.ID())
	}
	ctrl.Close()
}

func (s *ExamService) newController(ctx context.Context, sessionID, bankID string) (*Controller, error) {
	b, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("session_id", sessionID).Str("bank_id", bankID).Logger()
	now := s.now()

	session, err := Resume(ctx, s.storage, sessionID, b, now)
	fresh := err != nil
	if fresh {
		switch {
		case errors.Is(err, domain.ErrNoPersistedSession):
		case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrResumeMismatch):
			log.Info().Err(err).Msg("discarding persisted session")
		default:
			log.Warn().Err(err).Msg("resume failed")
		}
		if err := clearSession(ctx, s.storage, sessionID); err != nil {
			log.Warn().Err(err).Msg("clear stale session")
		}
		questions, err := s.selectQuestions(b)
		if err != nil {
			return nil, err
		}
		session = Create(questions, now, s.settings.TimeLimitSeconds)
		if err := persistCreated(ctx, s.storage, sessionID, session, now); err != nil {
			log.Warn().Err(err).Msg("session persistence failed")
		}
	}

	opts := []ControllerOption{WithControllerClock(s.now), WithControllerLogger(s.log), WithFinishHook(s.evict)}
	if s.manual {
		opts = append(opts, WithManualTimer())
	}
	ctrl := NewController(sessionID, session, s.settings, s.storage, s.history, opts...)
	if _, err := ctrl.Start(ctx); err != nil {
		return nil, err
	}
	log.Info().Bool("resumed", !fresh).Int("questions", len(session.Questions)).Msg("exam session opened")
	return ctrl, nil
}

// selectQuestions draws the exam: a weighted draw when the bank carries ranks,
// otherwise a plain draw over every question.
func (s *ExamService) selectQuestions(b domain.Bank) ([]domain.Question, error) {
	pool := bank.Filter(b.Questions, s.settings.RankFilter)
	if len(bank.Ranked(pool)) > 0 && len(s.settings.Weights) > 0 {
		if qs := s.sampler.Select(pool, s.settings.QuestionCount, s.settings.Weights); len(qs) > 0 {
			s.logDraw(b.ID, "weighted", qs)
			return qs, nil
		}
	}
	if qs := s.sampler.Select(pool, s.settings.QuestionCount, nil); len(qs) > 0 {
		s.logDraw(b.ID, "plain", qs)
		return qs, nil
	}
	return nil, fmt.Errorf("bank %q: %w", b.ID, domain.ErrNoQuestions)
}

func (s *ExamService) logDraw(bankID, mode string, qs []domain.Question) {
	dist := sampler.Distribution(qs)
	ev := s.log.Debug().Str("bank_id", bankID).Str("mode", mode).Int("selected", len(qs))
	for _, r := range domain.Ranks {
		ev = ev.Int("rank_"+string(r), dist[r])
	}
	ev.Msg("questions drawn")
}

func (s *ExamService) controller(sessionID string) (*Controller, error) {
	ctrl, ok := s.controllers.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return ctrl, nil
}

// Dispatch feeds ev to a live session. Events for a session that already
// finished fail with ErrExamFinished.
func (s *ExamService) Dispatch(ctx context.Context, sessionID string, ev Event) (domain.View, error) {
	ctrl, err := s.controller(sessionID)
	if err != nil {
		if _, rerr := LoadResult(ctx, s.storage, sessionID); rerr == nil {
			return domain.View{}, domain.ErrExamFinished
		}
		return domain.View{}, err
	}
	return ctrl.Dispatch(ctx, ev)
}

// View returns the current view of a live session.
func (s *ExamService) View(_ context.Context, sessionID string) (domain.View, error) {
	ctrl, err := s.controller(sessionID)
	if err != nil {
		return domain.View{}, err
	}
	return ctrl.View(), nil
}

// Subscribe returns a channel that receives updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ExamService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Update, func(), error) {
	ctrl, err := s.controller(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := ctrl.Subscribe()
	return ch, cancel, nil
}

// Result returns the outcome of a finished session, live or persisted.
func (s *ExamService) Result(ctx context.Context, sessionID string) (domain.ExamResult, error) {
	if ctrl, ok := s.controllers.Get(sessionID); ok {
		return ctrl.Result()
	}
	return LoadResult(ctx, s.storage, sessionID)
}

// Reset drops a session and its persisted state; the next Open starts fresh.
func (s *ExamService) Reset(ctx context.Context, sessionID string) error {
	s.Release(sessionID)
	if err := clearSession(ctx, s.storage, sessionID); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, sessionID, KeyResult); err != nil {
		return fmt.Errorf("clear result: %w", err)
	}
	return nil
}

// Release stops a live session without touching storage, so it can be resumed.
func (s *ExamService) Release(sessionID string) {
	if ctrl, ok := s.controllers.Get(sessionID); ok {
		s.controllers.Delete(sessionID)
		ctrl.Close()
	}
}

// Tick advances a manual-timer session to now.
func (s *ExamService) Tick(sessionID string, now time.Time) (int, error) {
	ctrl, err := s.controller(sessionID)
	if err != nil {
		return 0, err
	}
	return ctrl.Tick(now), nil
}

// History returns the most recent finished exams, newest first.
func (s *ExamService) History(ctx context.Context) ([]domain.HistoryRecord, error) {
	if s.history == nil {
		return []domain.HistoryRecord{}, nil
	}
	return s.history.Recent(ctx, s.settings.HistoryLimit)
}

// BankStats summarizes a bank.
func (s *ExamService) BankStats(ctx context.Context, bankID string) (bank.Statistics, error) {
	b, err := s.banks.GetBank(ctx, bankID)
	if err != nil {
		return bank.Statistics{}, err
	}
	return bank.Stats(b), nil
}

// ReloadBank drops any cached copy of a bank and loads it again, so new
// sessions and resume checks see the stored version.
func (s *ExamService) ReloadBank(ctx context.Context, bankID string) (bank.Statistics, error) {
	if inv, ok := s.banks.(BankInvalidator); ok {
		if err := inv.Invalidate(ctx, bankID); err != nil {
			return bank.Statistics{}, fmt.Errorf("invalidate bank %q: %w", bankID, err)
		}
	}
	stats, err := s.BankStats(ctx, bankID)
	if err != nil {
		return bank.Statistics{}, err
	}
	s.log.Info().Str("bank_id", bankID).Int("questions", stats.Total).Msg("bank reloaded")
	return stats, nil
}
