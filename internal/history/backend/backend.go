// Package backend opens the history medium selected by configuration.
package backend

import (
	"context"
	"fmt"

	"genstudio/internal/history"
	"genstudio/internal/history/postgres"
	"genstudio/internal/history/sqlite"
	"genstudio/internal/infra"
)

// Open returns the medium for cfg.HistoryDriver. The caller owns it and
// must Close it.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (history.Medium, error) {
	switch cfg.HistoryDriver {
	case infra.HistoryDriverMemory:
		logger.Warn().Msg("backend: history kept in memory, records are lost on exit")
		return history.NewMemoryMedium(), nil
	case infra.HistoryDriverPostgres:
		pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("backend: connect postgres: %w", err)
		}
		runner := infra.NewSQLRunner(pool, logger)
		return postgres.New(runner, pool.Close), nil
	case infra.HistoryDriverSQLite, "":
		medium, err := sqlite.New(cfg.HistorySQLitePath)
		if err != nil {
			return nil, fmt.Errorf("backend: open sqlite: %w", err)
		}
		logger.Info().Str("path", medium.Path()).Msg("backend: sqlite history opened")
		return medium, nil
	default:
		return nil, fmt.Errorf("backend: unknown history driver %q", cfg.HistoryDriver)
	}
}
