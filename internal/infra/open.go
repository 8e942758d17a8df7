package infra

import (
	"context"
	"fmt"

	"github.com/dvloznov/student-finance/internal/config"
	"github.com/dvloznov/student-finance/internal/infra/bigquery"
	"github.com/dvloznov/student-finance/internal/infra/sqlite"
	"github.com/dvloznov/student-finance/internal/store"
)

// OpenStore opens the storage backend selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return repo, nil
	case config.BackendBigQuery:
		repo, err := bigquery.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("OpenStore: unknown backend %q", cfg.Backend)
	}
}
