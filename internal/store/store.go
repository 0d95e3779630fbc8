// Package store persists adjudication runs and per-claim results.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/config"
	"github.com/sells-group/claims-cli/internal/model"
)

// Store is the persistence interface for the adjudication pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string, total int) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, succeeded, failed int) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Claim results
	SaveClaimResult(ctx context.Context, runID string, st *model.ClaimState) error
	ListClaimResults(ctx context.Context, runID string) ([]model.ClaimState, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = NewSQLite(cfg.Path)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
