package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"exam-simulator/internal/bank"
	"exam-simulator/internal/domain"
)

// BankRepository caches validated banks in Redis and falls back to a loader on
// cache miss. A bank is stored as one JSON document: SET bank:{bankID}:payload.
type BankRepository struct {
	client *redis.Client
	loader bank.Loader
	ttl    time.Duration
	log    zerolog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewBankRepository(client *redis.Client, loader bank.Loader, ttl time.Duration, log zerolog.Logger) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With().Str("component", "redis_banks").Logger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if b, ok := r.cached(ctx, bankID); ok {
		return b, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Another caller may have filled the cache meanwhile.
		if b, ok := r.cached(ctx, bankID); ok {
			return b, nil
		}

		b, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.Bank{}, err
		}
		if b.ID == "" {
			b.ID = bankID
		}
		if err := bank.Validate(b); err != nil {
			return domain.Bank{}, err
		}

		payload, err := json.Marshal(b)
		if err != nil {
			return domain.Bank{}, err
		}
		if err := r.client.Set(ctx, payloadKey(bankID), payload, r.ttlWithJitter()).Err(); err != nil {
			r.log.Warn().Err(err).Str("bank_id", bankID).Msg("cache bank failed")
		}
		return b, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

// Invalidate drops the cached copy of a bank.
func (r *BankRepository) Invalidate(ctx context.Context, bankID string) error {
	return r.client.Del(ctx, payloadKey(bankID)).Err()
}

func (r *BankRepository) cached(ctx context.Context, bankID string) (domain.Bank, bool) {
	raw, err := r.client.Get(ctx, payloadKey(bankID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("bank_id", bankID).Msg("read cached bank failed")
		}
		return domain.Bank{}, false
	}
	var b domain.Bank
	if err := json.Unmarshal(raw, &b); err != nil || len(b.Questions) == 0 {
		return domain.Bank{}, false
	}
	return b, true
}

func payloadKey(bankID string) string {
	return "bank:" + bankID + ":payload"
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
