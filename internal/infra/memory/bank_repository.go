package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"exam-simulator/internal/bank"
	"exam-simulator/internal/domain"
)

// BankRepository caches validated banks with a TTL so the backing store is not
// hit on every session. Malformed banks are rejected and never cached.
type BankRepository struct {
	loader bank.Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      domain.Bank
	expiresAt time.Time
}

func NewBankRepository(loader bank.Loader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, bankID string) (domain.Bank, error) {
	if b, ok := r.cached(bankID, r.clock()); ok {
		return b, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		now := r.clock()
		if b, ok := r.cached(bankID, now); ok {
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

		r.mu.Lock()
		r.cache[bankID] = cachedBank{bank: b, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return domain.Bank{}, err
	}
	return result.(domain.Bank), nil
}

// Invalidate drops a cached bank.
func (r *BankRepository) Invalidate(_ context.Context, bankID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, bankID)
	return nil
}

func (r *BankRepository) cached(bankID string, now time.Time) (domain.Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[bankID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Bank{}, false
	}
	return entry.bank, true
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves banks from a map (tests, demos).
type StaticBankLoader struct {
	banks map[string]domain.Bank
}

func NewStaticBankLoader(banks map[string]domain.Bank) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	if b, ok := l.banks[bankID]; ok {
		return b, nil
	}
	return domain.Bank{}, domain.ErrBankNotFound
}
