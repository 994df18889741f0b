package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type ConfigRepo struct {
	DB DBTX
}

const getConfigValue = `-- name: GetConfigValue
SELECT value FROM system_config
WHERE key = $1
`

func (r *ConfigRepo) GetValue(ctx context.Context, key string) (string, error) {
	rows, _ := r.DB.Query(ctx, getConfigValue, key)
	value, err := pgx.CollectOneRow(rows, pgx.RowTo[string])

	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", nil
	default:
		return "", fmt.Errorf("db error: %w", err)
	}
}
