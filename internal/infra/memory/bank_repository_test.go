package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam-simulator/internal/domain"
)

func TestBankRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		StaticBankLoader: NewStaticBankLoader(map[string]domain.Bank{
			"bank-1": sampleBank(),
		}),
	}
	repo := NewBankRepository(loader, time.Minute)

	if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}

	if err := repo.Invalidate(context.Background(), "bank-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
		t.Fatalf("get bank 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestBankRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		StaticBankLoader: NewStaticBankLoader(map[string]domain.Bank{"bank-1": sampleBank()}),
	}
	repo := NewBankRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.GetBank(context.Background(), "bank-1"); err != nil {
		t.Fatalf("get bank after ttl: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestBankRepositoryRejectsMalformedBank(t *testing.T) {
	broken := sampleBank()
	broken.Questions[0].CorrectChoiceID = 9
	loader := &countingLoader{
		StaticBankLoader: NewStaticBankLoader(map[string]domain.Bank{"bank-1": broken}),
	}
	repo := NewBankRepository(loader, time.Minute)

	_, err := repo.GetBank(context.Background(), "bank-1")
	var integrity *domain.DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if _, err := repo.GetBank(context.Background(), "bank-1"); err == nil {
		t.Fatalf("malformed bank must not be cached")
	}
	if loader.calls != 2 {
		t.Fatalf("expected a load per attempt, got %d", loader.calls)
	}
}

func TestBankRepositoryUnknownBank(t *testing.T) {
	repo := NewBankRepository(NewStaticBankLoader(nil), time.Minute)
	if _, err := repo.GetBank(context.Background(), "missing"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

type countingLoader struct {
	*StaticBankLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context, bankID string) (domain.Bank, error) {
	l.calls++
	return l.StaticBankLoader.LoadBank(ctx, bankID)
}

func sampleBank() domain.Bank {
	return domain.Bank{
		ID: "bank-1",
		Questions: []domain.Question{
			{
				ID:        1,
				Rank:      domain.RankA,
				Statement: "What is 2 + 2?",
				Choices: []domain.Choice{
					{ID: 1, Text: "3"},
					{ID: 2, Text: "4"},
				},
				CorrectChoiceID: 2,
			},
		},
	}
}
