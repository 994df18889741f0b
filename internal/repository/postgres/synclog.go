package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/justtherip/packvault/internal/models"
)

type SyncLogRepo struct {
	DB DBTX
}

const createSyncRun = `-- name: CreateSyncRun
INSERT INTO tcg_sync_runs (id, run_at, categories_processed, groups_processed, total_items,
        products_upserted, prices_upserted, errors, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (r *SyncLogRepo) CreateRun(ctx context.Context, stats models.SyncStats) error {
	errs := stats.Errors
	if errs == nil {
		errs = []models.SyncError{}
	}

	_, err := r.DB.Exec(ctx, createSyncRun,
		uuid.New(), stats.StartedAt, stats.CategoriesProcessed, stats.GroupsProcessed,
		stats.TotalItems, stats.ProductsUpserted, stats.PricesUpserted, errs, stats.DurationMS)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
