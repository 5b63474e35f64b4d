package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"escrow/internal/adapter/repo"
	"escrow/internal/address"
	"escrow/internal/audit"
	"escrow/internal/bootstrap"
	"escrow/internal/infra"
	"escrow/internal/ledger"
	"escrow/internal/storage"
)

// The worker reconciles persisted campaign state on AUDIT_SCHEDULE. It needs
// the postgres store; the api process audits its own memory store.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "audit-worker").Logger()

	if cfg.StoreDriver != infra.StorePostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("worker: STORE_DRIVER=postgres is required")
	}
	if cfg.AuditSchedule == "" {
		logger.Fatal().Msg("worker: AUDIT_SCHEDULE is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer backend.Close()

	files, err := storage.NewFileStore(cfg.AuditReportPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: report storage unavailable")
	}

	query := ledger.NewQuery(backend.Store, address.New(cfg.ProgramID))
	auditor := audit.New(query,
		audit.WithReportWriter(files),
		audit.WithRunRecorder(repo.NewAuditLog(backend.Runner)),
		audit.WithLogger(logger),
	)

	scheduler, err := audit.NewScheduler(ctx, cfg.AuditSchedule, auditor, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid audit schedule")
	}

	// Run once at boot so a fresh deploy reports immediately.
	if _, err := auditor.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: initial audit failed")
	}

	scheduler.Start()
	logger.Info().
		Str("schedule", cfg.AuditSchedule).
		Str("reports", files.BasePath()).
		Msg("worker started")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
	logger.Info().Msg("worker stopped")
}
