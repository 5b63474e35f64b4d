package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"escrow/internal/address"
	"escrow/internal/audit"
	"escrow/internal/bootstrap"
	"escrow/internal/http/handlers"
	httpapi "escrow/internal/http/httpapi"
	"escrow/internal/infra"
	"escrow/internal/infra/geoip"
	"escrow/internal/ledger"
	"escrow/internal/middleware"
	"escrow/internal/realtime"
	"escrow/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open account store")
	}
	defer backend.Close()

	hub := realtime.NewHub(logger, cfg.CORSOrigins)
	go hub.Run(ctx)

	derive := address.New(cfg.ProgramID)
	engine := ledger.NewEngine(backend.Store, derive,
		ledger.WithEventSink(hub),
		ledger.WithLogger(logger.With().Str("component", "ledger").Logger()),
	)
	query := ledger.NewQuery(backend.Store, derive)

	var opts httpapi.Options
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		opts.CountryLookup = middleware.CountryLookup(resolver.CountryCode)
		defer resolver.Close()
	}

	// The memory store lives in this process, so the audit has to as well.
	if !backend.Persistent() && cfg.AuditSchedule != "" {
		scheduler, err := newInProcessAudit(ctx, cfg, query, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure audit")
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	app := handlers.NewApp(engine, query, hub, cfg, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, opts))

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("program_id", derive.Program().String()).
			Str("store", backend.Driver).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newInProcessAudit(ctx context.Context, cfg *infra.Config, query *ledger.Query, logger infra.Logger) (*audit.Scheduler, error) {
	files, err := storage.NewFileStore(cfg.AuditReportPath)
	if err != nil {
		return nil, err
	}
	auditor := audit.New(query,
		audit.WithReportWriter(files),
		audit.WithLogger(logger.With().Str("component", "audit").Logger()),
	)
	return audit.NewScheduler(ctx, cfg.AuditSchedule, auditor, logger)
}
