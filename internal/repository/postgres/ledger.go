package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/models"
)

type LedgerRepo struct {
	DB DBTX
}

const getBalance = `-- name: GetBalance
SELECT rip_balance FROM profiles
WHERE id = $1
`

func (r *LedgerRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	rows, _ := r.DB.Query(ctx, getBalance, userID)
	balance, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrUserNotFound
	default:
		return 0, fmt.Errorf("db error: %w", err)
	}
}

// The affordability guard is part of the UPDATE condition: when two debits
// race, the row lock serializes them and the loser sees the decremented
// balance, so at most one can spend funds that only cover one.
const debitBalance = `-- name: Debit
UPDATE profiles
SET rip_balance = rip_balance - $2
WHERE id = $1 AND rip_balance >= $2
RETURNING rip_balance
`

func (r *LedgerRepo) Debit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	rows, _ := r.DB.Query(ctx, debitBalance, userID, amount)
	balance, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		// No row matched: either the user is unknown or the guard failed
		if _, err := r.GetBalance(ctx, userID); err != nil {
			return 0, err
		}
		return 0, apperrors.ErrInsufficientFunds
	default:
		return 0, fmt.Errorf("db error: %w", err)
	}
}

const creditBalance = `-- name: Credit
UPDATE profiles
SET rip_balance = rip_balance + $2
WHERE id = $1
RETURNING rip_balance
`

func (r *LedgerRepo) Credit(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	rows, _ := r.DB.Query(ctx, creditBalance, userID, amount)
	balance, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrUserNotFound
	default:
		return 0, fmt.Errorf("db error: %w", err)
	}
}

const createEntry = `-- name: CreateEntry
INSERT INTO rip_transactions (id, created_at, user_id, amount, balance_after, reason, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, user_id, amount, balance_after, reason, metadata
`

func (r *LedgerRepo) CreateEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	rows, _ := r.DB.Query(ctx, createEntry,
		entry.ID, entry.CreatedAt, entry.UserID, entry.Amount, entry.BalanceAfter, entry.Reason, entry.Metadata)
	entry, err := pgx.CollectOneRow(rows, rowToEntry)
	if err != nil {
		return entry, fmt.Errorf("db error: %w", err)
	}

	return entry, nil
}

const listEntries = `-- name: ListEntries
SELECT id, created_at, user_id, amount, balance_after, reason, metadata
FROM rip_transactions
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2
`

func (r *LedgerRepo) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	rows, _ := r.DB.Query(ctx, listEntries, userID, limit)
	entries, err := pgx.CollectRows(rows, rowToEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return entries, nil
}

const sumEntries = `-- name: SumEntries
SELECT COALESCE(SUM(amount), 0) FROM rip_transactions
WHERE user_id = $1
`

func (r *LedgerRepo) SumEntries(ctx context.Context, userID uuid.UUID) (int64, error) {
	rows, _ := r.DB.Query(ctx, sumEntries, userID)
	sum, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return sum, nil
}

func rowToEntry(row pgx.CollectableRow) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.CreatedAt, &e.UserID, &e.Amount, &e.BalanceAfter, &e.Reason, &e.Metadata)
	return e, err
}
