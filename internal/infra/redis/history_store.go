package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"exam-simulator/internal/domain"
)

const historyKey = "exam:history"

// HistoryStore keeps finished exams in a capped list, newest first.
type HistoryStore struct {
	client *redis.Client
	limit  int
}

func NewHistoryStore(client *redis.Client, limit int) *HistoryStore {
	return &HistoryStore{client: client, limit: limit}
}

func (h *HistoryStore) Append(ctx context.Context, rec domain.HistoryRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, historyKey, payload)
	if h.limit > 0 {
		pipe.LTrim(ctx, historyKey, 0, int64(h.limit-1))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (h *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := h.client.LRange(ctx, historyKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.HistoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode history: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
