package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"exam-simulator/internal/app"
	"exam-simulator/internal/config"
	"exam-simulator/internal/infra/memory"
	"exam-simulator/internal/logger"
	transport "exam-simulator/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	banks := b.bankRepository(cfg, log)
	// A malformed default bank must stop startup before any session is served.
	if cfg.Bank.Default != "" {
		if _, err := banks.GetBank(ctx, cfg.Bank.Default); err != nil {
			return fmt.Errorf("load default bank %q: %w", cfg.Bank.Default, err)
		}
	}

	controllers := memory.NewControllerStore()
	defer func() {
		log.Info().Int("live_sessions", controllers.Len()).Msg("closing live sessions")
		controllers.CloseAll()
	}()
	service := app.NewExamService(controllers, banks, b.sessionStorage(cfg), b.historyStore(cfg), settingsFrom(cfg),
		app.WithLogger(log), app.WithSampler(newSampler(cfg)))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("starting exam server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
