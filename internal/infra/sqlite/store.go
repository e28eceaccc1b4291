package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"exam-simulator/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_keys (
    session_id TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (session_id, key)
);

CREATE TABLE IF NOT EXISTS exam_history (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id        TEXT NOT NULL,
    finished_at       INTEGER NOT NULL,
    correct           INTEGER NOT NULL,
    total             INTEGER NOT NULL,
    percentage        INTEGER NOT NULL,
    passed            INTEGER NOT NULL,
    time_used_seconds INTEGER NOT NULL
);
`

// Store is a local SQLite database holding persisted sessions and exam
// history. It satisfies app.SessionStorage and app.HistoryStore.
type Store struct {
	db    *sql.DB
	limit int
}

// Open creates or opens the database at path. History beyond limit records is
// pruned on append; a non-positive limit keeps everything.
func Open(path string, limit int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// ":memory:" databases live per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &Store{db: db, limit: limit}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Set(ctx context.Context, sessionID, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_keys (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sessionID, key, value, time.Now().UnixMilli())
	return err
}

func (s *Store) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session_keys WHERE session_id = ? AND key = ?`, sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_keys WHERE session_id = ? AND key = ?`, sessionID, key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Sessions lists session ids that still hold an exam snapshot, most recently
// written first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM session_keys WHERE key = 'exam_data' ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Append(ctx context.Context, rec domain.HistoryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exam_history (session_id, finished_at, correct, total, percentage, passed, time_used_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.FinishedAt.UnixMilli(), rec.Correct, rec.Total, rec.Percentage, rec.Passed, rec.TimeUsedSeconds)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	if s.limit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM exam_history WHERE id NOT IN (
				SELECT id FROM exam_history ORDER BY finished_at DESC, id DESC LIMIT ?
			)`, s.limit)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, finished_at, correct, total, percentage, passed, time_used_seconds
		FROM exam_history ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoryRecord
	for rows.Next() {
		var (
			rec      domain.HistoryRecord
			finished int64
		)
		if err := rows.Scan(&rec.SessionID, &finished, &rec.Correct, &rec.Total, &rec.Percentage, &rec.Passed, &rec.TimeUsedSeconds); err != nil {
			return nil, err
		}
		rec.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
