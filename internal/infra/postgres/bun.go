package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"exam-simulator/internal/domain"
	pgmigrations "exam-simulator/internal/infra/postgres/migrations"
)

// OpenBun opens a bun handle over the pgdriver connector.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Migrate applies every pending migration and returns the applied group.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}
	return migrator.Migrate(ctx)
}

type bankRow struct {
	bun.BaseModel `bun:"table:question_banks"`

	ID        string          `bun:"id,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	UpdatedAt time.Time       `bun:"updated_at"`
}

// BankImporter upserts banks into question_banks.
type BankImporter struct {
	db *bun.DB
}

func NewBankImporter(db *bun.DB) *BankImporter {
	return &BankImporter{db: db}
}

// Import stores b under its id, replacing an existing bank.
func (i *BankImporter) Import(ctx context.Context, b domain.Bank) error {
	data, err := json.Marshal(b.Questions)
	if err != nil {
		return fmt.Errorf("encode bank: %w", err)
	}
	row := &bankRow{ID: b.ID, Data: data, UpdatedAt: time.Now().UTC()}
	_, err = i.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("import bank %q: %w", b.ID, err)
	}
	return nil
}
