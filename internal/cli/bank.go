package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"exam-simulator/internal/bank"
	"exam-simulator/internal/config"
	"exam-simulator/internal/domain"
	pgstore "exam-simulator/internal/infra/postgres"
	"exam-simulator/internal/logger"
)

// NewBankCmd groups question bank maintenance commands.
func NewBankCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Inspect and import question banks",
	}
	cmd.AddCommand(newBankListCmd(configPath))
	cmd.AddCommand(newBankValidateCmd())
	cmd.AddCommand(newBankStatsCmd(configPath))
	cmd.AddCommand(newBankImportCmd(configPath))
	return cmd
}

func newBankListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bank ids from Postgres, or from the bank directory without it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			ids, source, err := listBanks(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d bank(s) in %s\n", len(ids), source)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
			}
			return nil
		},
	}
}

func listBanks(ctx context.Context, cfg config.Config) ([]string, string, error) {
	if cfg.Postgres.URL == "" {
		ids, err := bank.NewFileLoader(cfg.Bank.Dir).List()
		sort.Strings(ids)
		return ids, cfg.Bank.Dir, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, "", err
	}
	defer pool.Close()
	ids, err := pgstore.NewBankLoader(pool).List(ctx)
	return ids, "postgres", err
}

func newBankValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check bank files for integrity problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				b, err := bank.LoadFile(path)
				if err == nil {
					err = bank.Validate(b)
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d questions)\n", path, len(b.Questions))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d bank(s) failed validation", failed, len(args))
			}
			return nil
		},
	}
}

func newBankStatsCmd(configPath *string) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "stats [bank-id]",
		Short: "Summarize a bank from the bank directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			id := cfg.Bank.Default
			if len(args) == 1 {
				id = args[0]
			}
			b, err := bank.NewFileLoader(cfg.Bank.Dir).LoadBank(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("bank %q: %w", id, err)
			}
			printStats(cmd.OutOrStdout(), bank.Stats(b))
			if search != "" {
				for _, q := range bank.Search(b.Questions, search) {
					fmt.Fprintf(cmd.OutOrStdout(), "  #%d [%s] %s\n", q.ID, q.Rank.OrDefault(), q.Statement)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "also list questions whose text contains this term")
	return cmd
}

func printStats(out io.Writer, s bank.Statistics) {
	fmt.Fprintf(out, "bank %s: %d questions, %.1f choices on average\n", s.BankID, s.Total, s.AverageChoices)
	ranks := make([]string, 0, len(s.ByRank))
	for r := range s.ByRank {
		ranks = append(ranks, string(r))
	}
	sort.Strings(ranks)
	for _, r := range ranks {
		c := s.ByRank[domain.Rank(r)]
		fmt.Fprintf(out, "  rank %s: %d (%.1f%%)\n", r, c.Count, c.Percentage)
	}
}

func newBankImportCmd(configPath *string) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a bank file and store it in Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return importBank(cmd.Context(), cfg, args[0], id)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "bank id (defaults to the id in the file, then the file name)")
	return cmd
}

func importBank(ctx context.Context, cfg config.Config, path, id string) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	b, err := bank.LoadFile(path)
	if err != nil {
		return err
	}
	if id != "" {
		b.ID = id
	}
	if err := bank.Validate(b); err != nil {
		return err
	}

	db := pgstore.OpenBun(cfg.Postgres.URL)
	defer db.Close()
	if _, err := pgstore.Migrate(ctx, db); err != nil {
		return err
	}
	if err := pgstore.NewBankImporter(db).Import(ctx, b); err != nil {
		return err
	}
	log.Info().Str("bank_id", b.ID).Int("questions", len(b.Questions)).Msg("bank imported")

	// Servers sharing the Redis cache must not keep serving the old copy.
	if cfg.Redis.Addr != "" {
		cache := backends{redis: newRedisClient(cfg)}
		defer cache.close()
		if err := cache.invalidateBank(ctx, cfg, log, b.ID); err != nil {
			return fmt.Errorf("bank imported but cache not cleared: %w", err)
		}
		log.Info().Str("bank_id", b.ID).Msg("cached bank invalidated")
	}
	return nil
}
