package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"exam-simulator/internal/domain"
)

// HistoryStore records finished exams in the exam_history table.
type HistoryStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

func (h *HistoryStore) Append(ctx context.Context, rec domain.HistoryRecord) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO exam_history (session_id, finished_at, correct, total, percentage, passed, time_used_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.SessionID, rec.FinishedAt, rec.Correct, rec.Total, rec.Percentage, rec.Passed, rec.TimeUsedSeconds)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (h *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := h.pool.Query(ctx, `
		SELECT session_id, finished_at, correct, total, percentage, passed, time_used_seconds
		FROM exam_history ORDER BY finished_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoryRecord, 0, limit)
	for rows.Next() {
		var rec domain.HistoryRecord
		if err := rows.Scan(&rec.SessionID, &rec.FinishedAt, &rec.Correct, &rec.Total, &rec.Percentage, &rec.Passed, &rec.TimeUsedSeconds); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
