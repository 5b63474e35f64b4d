// Package bootstrap opens the account store selected by configuration. It is
// shared by the api, worker and escrowctl binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"escrow/internal/adapter/memory"
	"escrow/internal/adapter/repo"
	"escrow/internal/domain"
	"escrow/internal/infra"
)

// Backend is an opened account store plus the SQL runner behind it, if any.
type Backend struct {
	Store domain.Store
	// Runner is nil for the in-memory store.
	Runner *infra.SQLRunner
	Driver string

	close func()
}

// Open connects to the store named by cfg.StoreDriver.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case infra.StoreMemory, "":
		logger.Warn().Msg("using in-memory account store, state is lost on exit")
		return &Backend{Store: memory.NewStore(), Driver: infra.StoreMemory, close: func() {}}, nil
	case infra.StorePostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		runner := infra.NewSQLRunner(pool, logger)
		return &Backend{
			Store:  repo.NewAccountStore(runner),
			Runner: runner,
			Driver: infra.StorePostgres,
			close:  pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Persistent reports whether state outlives the process.
func (b *Backend) Persistent() bool {
	return b.Runner != nil
}

func (b *Backend) Close() {
	if b != nil && b.close != nil {
		b.close()
	}
}
