package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"exam-simulator/internal/app"
	"exam-simulator/internal/domain"
	"exam-simulator/internal/infra/memory"
	pgstore "exam-simulator/internal/infra/postgres"
	infraredis "exam-simulator/internal/infra/redis"
)

func TestExamEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedBank(t, ctx, pgURL, sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	now := time.Now()
	clock := func() time.Time { return now }
	newService := func() (*app.ExamService, *memory.ControllerStore) {
		controllers := memory.NewControllerStore()
		return app.NewExamService(
			controllers,
			infraredis.NewBankRepository(redisClient, pgstore.NewBankLoader(pool), 5*time.Minute, zerolog.Nop()),
			infraredis.NewSessionStorage(redisClient, 5*time.Minute),
			pgstore.NewHistoryStore(pool),
			app.Settings{
				DefaultBank:      "bank-1",
				QuestionCount:    4,
				TimeLimitSeconds: 600,
				PassingThreshold: 0.6,
				Weights:          domain.RankWeights{domain.RankA: 0.25, domain.RankB: 0.25, domain.RankC: 0.25, domain.RankD: 0.25},
				HistoryLimit:     20,
			},
			app.WithClock(clock),
			app.WithManualTimers(),
		), controllers
	}

	service, controllers := newService()
	view, err := service.Open(ctx, "s1", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if view.Total != 4 {
		t.Fatalf("expected 4 questions, got %d", view.Total)
	}
	if _, err := service.Dispatch(ctx, "s1", app.AnswerSelected(view.Question.ID, view.Question.Choices[0].ID)); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := service.Dispatch(ctx, "s1", app.NextRequested()); err != nil {
		t.Fatalf("next: %v", err)
	}
	controllers.CloseAll()

	// A second process resumes from Redis.
	now = now.Add(30 * time.Second)
	resumed, resumedControllers := newService()
	defer resumedControllers.CloseAll()
	view, err = resumed.Open(ctx, "s1", "")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if view.Index != 1 || view.Answered != 1 || view.RemainingSeconds != 570 {
		t.Fatalf("unexpected resumed view %+v", view)
	}

	if _, err := resumed.Dispatch(ctx, "s1", app.FinishRequested()); err != nil {
		t.Fatalf("finish: %v", err)
	}
	result, err := resumed.Result(ctx, "s1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Score.Total != 4 || result.Score.Unanswered != 3 || result.TimeUsedSeconds != 30 {
		t.Fatalf("unexpected result %+v", result)
	}

	history, err := resumed.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].SessionID != "s1" {
		t.Fatalf("expected one history record, got %+v", history)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// seedBank runs the migrations and imports b the way `bank import` does.
func seedBank(t *testing.T, ctx context.Context, dsn string, b domain.Bank) {
	t.Helper()
	db := pgstore.OpenBun(dsn)
	defer db.Close()

	if _, err := pgstore.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := pgstore.NewBankImporter(db).Import(ctx, b); err != nil {
		t.Fatalf("import bank: %v", err)
	}
}

func sampleBank() domain.Bank {
	b := domain.Bank{ID: "bank-1"}
	for i := 1; i <= 8; i++ {
		b.Questions = append(b.Questions, domain.Question{
			ID:        i,
			Rank:      domain.Ranks[i%len(domain.Ranks)],
			Statement: fmt.Sprintf("What is %d + %d?", i, i),
			Choices: []domain.Choice{
				{ID: 1, Text: fmt.Sprint(2 * i)},
				{ID: 2, Text: fmt.Sprint(2*i + 1)},
			},
			CorrectChoiceID: 1,
		})
	}
	return b
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
