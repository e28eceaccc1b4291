package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"exam-simulator/internal/app"
	"exam-simulator/internal/bank"
	"exam-simulator/internal/config"
	"exam-simulator/internal/domain"
	"exam-simulator/internal/infra/memory"
	"exam-simulator/internal/infra/sqlite"
	"exam-simulator/internal/logger"
	"exam-simulator/internal/scorer"
	"exam-simulator/internal/timer"
)

type takeOptions struct {
	sessionID string
	bankID    string
	rank      string
	questions int
	list      bool
}

// NewTakeCmd runs an exam in the terminal. Progress is kept in the local
// SQLite database so an interrupted exam resumes under the same session id.
func NewTakeCmd(configPath *string) *cobra.Command {
	var opts takeOptions
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take an exam in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			return runTake(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.sessionID, "session", "local", "session id; reuse it to resume")
	cmd.Flags().StringVar(&opts.bankID, "bank", "", "question bank id (defaults to bank.default)")
	cmd.Flags().StringVar(&opts.rank, "rank", "", "only draw questions of this rank (A-D)")
	cmd.Flags().IntVar(&opts.questions, "questions", 0, "number of questions (defaults to exam.questionCount)")
	cmd.Flags().BoolVar(&opts.list, "list", false, "list saved sessions that can be resumed and exit")
	return cmd
}

func runTake(ctx context.Context, cfg config.Config, opts takeOptions, in io.Reader, out io.Writer) error {
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	settings := settingsFrom(cfg)
	if opts.rank != "" {
		rank := domain.Rank(strings.ToUpper(opts.rank))
		if !rank.Valid() {
			return fmt.Errorf("unknown rank %q", opts.rank)
		}
		settings.RankFilter = rank
	}
	if opts.questions > 0 {
		settings.QuestionCount = opts.questions
	}

	store, err := sqlite.Open(cfg.SQLite.Path, cfg.Exam.HistoryLimit)
	if err != nil {
		return err
	}
	defer store.Close()
	if opts.list {
		return listSessions(ctx, store, out)
	}

	banks := memory.NewBankRepository(bank.NewFileLoader(cfg.Bank.Dir), config.Duration(cfg.Bank.TTL, 10*time.Minute))
	controllers := memory.NewControllerStore()
	defer controllers.CloseAll()
	service := app.NewExamService(controllers, banks, store, store, settings,
		app.WithLogger(log), app.WithSampler(newSampler(cfg)))

	view, err := service.Open(ctx, opts.sessionID, opts.bankID)
	if err != nil {
		return err
	}
	r := &terminal{out: out, threshold: settings.PassingThreshold}
	return r.run(ctx, service, view.SessionID, in)
}

func listSessions(ctx context.Context, store *sqlite.Store, out io.Writer) error {
	ids, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "no saved sessions")
		return nil
	}
	fmt.Fprintln(out, "saved sessions (resume with take --session <id>):")
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

// terminal renders a session and turns typed commands into events.
type terminal struct {
	mu        sync.Mutex
	out       io.Writer
	threshold float64
}

const helpText = `commands: <number> choose answer, n next, p previous, g <number> go to question,
  s pause clock, r resume clock, x <minutes> extend time, f finish, q save and quit`

func (t *terminal) run(ctx context.Context, service *app.ExamService, sessionID string, in io.Reader) error {
	updates, cancel, err := service.Subscribe(ctx, sessionID)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		finished := false
		for u := range updates {
			if t.render(u) && !finished {
				finished = true
				close(done)
			}
		}
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()

	t.printf("%s\n", helpText)
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			service.Release(sessionID)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok || line == "q" {
				service.Release(sessionID)
				t.printf("Progress saved. Run take --session %s to resume.\n", sessionID)
				return nil
			}
			current, err := service.View(ctx, sessionID)
			if errors.Is(err, domain.ErrSessionNotFound) {
				// Finished sessions are dropped once their result is out.
				<-done
				return nil
			}
			if err != nil {
				return err
			}
			ev, ok := t.parse(line, current)
			if !ok {
				t.printf("%s\n", helpText)
				continue
			}
			if _, err := service.Dispatch(ctx, sessionID, ev); err != nil {
				t.printf("! %v\n", err)
				if errors.Is(err, domain.ErrExamFinished) {
					<-done
					return nil
				}
				continue
			}
			if ev.Kind == app.EventFinishRequested {
				<-done
				return nil
			}
		}
	}
}

// parse maps a typed command to an event; numbers pick a choice of the
// current question by position.
func (t *terminal) parse(line string, current domain.View) (app.Event, bool) {
	switch {
	case line == "n":
		return app.NextRequested(), true
	case line == "p":
		return app.PreviousRequested(), true
	case line == "f":
		return app.FinishRequested(), true
	case line == "s":
		return app.PauseRequested(), true
	case line == "r":
		return app.ResumeRequested(), true
	case strings.HasPrefix(line, "x "):
		minutes, err := strconv.Atoi(strings.TrimSpace(line[2:]))
		if err != nil {
			return app.Event{}, false
		}
		return app.TimeExtended(minutes * 60), true
	case strings.HasPrefix(line, "g "):
		n, err := strconv.Atoi(strings.TrimSpace(line[2:]))
		if err != nil {
			return app.Event{}, false
		}
		return app.NavigateTo(n - 1), true
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return app.Event{}, false
	}
	if n < 1 || n > len(current.Question.Choices) {
		return app.Event{}, false
	}
	return app.AnswerSelected(current.Question.ID, current.Question.Choices[n-1].ID), true
}

// render prints one update and reports whether the exam finished.
func (t *terminal) render(u domain.Update) bool {
	switch u.Type {
	case domain.UpdateQuestion:
		if u.View != nil {
			t.printQuestion(*u.View)
		}
	case domain.UpdateWarning:
		t.printf("-- %s left --\n", timer.Format(u.RemainingSeconds))
	case domain.UpdateDanger:
		t.printf("!! only %s left !!\n", timer.Format(u.RemainingSeconds))
	case domain.UpdateFinished:
		if u.Result != nil {
			t.printResult(*u.Result)
		}
		return true
	}
	return false
}

func (t *terminal) printQuestion(v domain.View) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%d/%d] %s left (%.0f%% of time used), %d answered\n",
		v.Index+1, v.Total, timer.Format(v.RemainingSeconds), v.Progress*100, v.Answered)
	if v.State == domain.StatePaused.String() {
		b.WriteString("(clock paused, r to resume)\n")
	}
	if v.Question.Rank != "" {
		fmt.Fprintf(&b, "(rank %s) ", v.Question.Rank)
	}
	fmt.Fprintf(&b, "%s\n", v.Question.Statement)
	for i, c := range v.Question.Choices {
		mark := " "
		if v.SelectedChoiceID != nil && *v.SelectedChoiceID == c.ID {
			mark = "*"
		}
		fmt.Fprintf(&b, " %s %d) %s\n", mark, i+1, c.Text)
	}
	t.printf("%s", b.String())
}

func (t *terminal) printResult(r domain.ExamResult) {
	var b strings.Builder
	if r.Reason == domain.FinishExpired {
		b.WriteString("\nTime is up.\n")
	}
	fmt.Fprintf(&b, "\n%s\n", scorer.Summary(r.Score, t.threshold))
	fmt.Fprintf(&b, "Time used: %s, unanswered: %d\n", timer.Format(r.TimeUsedSeconds), r.Score.Unanswered)
	for _, rank := range domain.Ranks {
		if stat, ok := r.Score.PerRank[rank]; ok {
			fmt.Fprintf(&b, "  rank %s: %d/%d (%.0f%%)\n", rank, stat.Correct, stat.Total, stat.Accuracy)
		}
	}
	for _, w := range scorer.Weaknesses(r.Score, t.threshold) {
		fmt.Fprintf(&b, "Weak spot rank %s: %s\n", w.Rank, w.Suggestion)
	}
	for _, d := range r.Score.Details {
		if d.Correct {
			continue
		}
		fmt.Fprintf(&b, "  #%d %s (correct answer: %d)\n", d.Number, d.Statement, d.CorrectChoiceID)
		if d.Explanation != "" {
			fmt.Fprintf(&b, "     %s\n", d.Explanation)
		}
	}
	t.printf("%s", b.String())
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}
