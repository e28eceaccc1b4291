package memory

import (
	"context"
	"sync"

	"exam-simulator/internal/domain"
)

// HistoryStore keeps the newest records in memory, oldest dropped first.
type HistoryStore struct {
	mu      sync.Mutex
	limit   int
	records []domain.HistoryRecord
}

func NewHistoryStore(limit int) *HistoryStore {
	return &HistoryStore{limit: limit}
}

func (h *HistoryStore) Append(_ context.Context, rec domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append([]domain.HistoryRecord{rec}, h.records...)
	if h.limit > 0 && len(h.records) > h.limit {
		h.records = h.records[:h.limit]
	}
	return nil
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns everything kept.
func (h *HistoryStore) Recent(_ context.Context, limit int) ([]domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.HistoryRecord, n)
	copy(out, h.records[:n])
	return out, nil
}
