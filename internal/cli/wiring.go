package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"exam-simulator/internal/app"
	"exam-simulator/internal/bank"
	"exam-simulator/internal/config"
	"exam-simulator/internal/infra/memory"
	pgstore "exam-simulator/internal/infra/postgres"
	redisstore "exam-simulator/internal/infra/redis"
	"exam-simulator/internal/sampler"
)

func settingsFrom(cfg config.Config) app.Settings {
	return app.Settings{
		DefaultBank:      cfg.Bank.Default,
		QuestionCount:    cfg.Exam.QuestionCount,
		TimeLimitSeconds: cfg.Exam.TimeLimitSeconds(),
		PassingThreshold: cfg.Exam.PassingScore,
		Weights:          cfg.Exam.RankWeights,
		RankFilter:       cfg.Exam.RankFilter,
		WarningSeconds:   cfg.Exam.WarningSeconds(),
		DangerSeconds:    cfg.Exam.DangerSeconds(),
		Tick:             cfg.Exam.Tick(),
		HistoryLimit:     cfg.Exam.HistoryLimit,
	}
}

func newSampler(cfg config.Config) *sampler.Sampler {
	return sampler.New(
		sampler.WithFillAttempts(cfg.Exam.FillAttempts),
		sampler.WithShufflePasses(cfg.Exam.ShufflePasses),
	)
}

// backends holds the optional external stores named in the config.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
}

func connect(ctx context.Context, cfg config.Config) (backends, error) {
	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = newRedisClient(cfg)
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return backends{}, err
		}
		b.pool = pool
	}
	return b, nil
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func (b backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// bankRepository picks Postgres over files as the source and Redis over
// process memory as the cache.
func (b backends) bankRepository(cfg config.Config, log zerolog.Logger) app.BankRepository {
	var loader bank.Loader = bank.NewFileLoader(cfg.Bank.Dir)
	if b.pool != nil {
		loader = pgstore.NewBankLoader(b.pool)
	}
	ttl := config.Duration(cfg.Bank.TTL, 10*time.Minute)
	if b.redis != nil {
		return redisstore.NewBankRepository(b.redis, loader, ttl, log)
	}
	return memory.NewBankRepository(loader, ttl)
}

// invalidateBank drops the cached copy of bankID, if the repository caches.
func (b backends) invalidateBank(ctx context.Context, cfg config.Config, log zerolog.Logger, bankID string) error {
	if inv, ok := b.bankRepository(cfg, log).(app.BankInvalidator); ok {
		return inv.Invalidate(ctx, bankID)
	}
	return nil
}

func (b backends) sessionStorage(cfg config.Config) app.SessionStorage {
	if b.redis != nil {
		return redisstore.NewSessionStorage(b.redis, config.Duration(cfg.Redis.TTL, 45*time.Minute))
	}
	return memory.NewSessionStorage()
}

func (b backends) historyStore(cfg config.Config) app.HistoryStore {
	switch {
	case b.pool != nil:
		return pgstore.NewHistoryStore(b.pool)
	case b.redis != nil:
		return redisstore.NewHistoryStore(b.redis, cfg.Exam.HistoryLimit)
	}
	return memory.NewHistoryStore(cfg.Exam.HistoryLimit)
}
