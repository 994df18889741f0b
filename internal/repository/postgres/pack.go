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

type PackRepo struct {
	DB DBTX
}

const getPack = `-- name: GetPack
SELECT id, created_at, name, slug, description, image_url, game_code, state, rip_cost, total_openings
FROM packs
WHERE id = $1
`

func (r *PackRepo) GetPack(ctx context.Context, id uuid.UUID) (models.Pack, error) {
	rows, _ := r.DB.Query(ctx, getPack, id)
	pack, err := pgx.CollectOneRow(rows, rowToPack)

	switch {
	case err == nil:
		return pack, nil
	case errors.Is(err, pgx.ErrNoRows):
		return pack, apperrors.ErrPackNotFound
	default:
		return pack, fmt.Errorf("db error: %w", err)
	}
}

const listActivePacks = `-- name: ListActivePacks
SELECT id, created_at, name, slug, description, image_url, game_code, state, rip_cost, total_openings
FROM packs
WHERE state = 'active'
ORDER BY created_at DESC
`

func (r *PackRepo) ListActive(ctx context.Context) ([]models.Pack, error) {
	rows, _ := r.DB.Query(ctx, listActivePacks)
	packs, err := pgx.CollectRows(rows, rowToPack)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return packs, nil
}

const getPool = `-- name: GetPool
SELECT pack_id, card_id, game_code, weight, value_cents, is_foil, condition,
       card_name, image_url, set_name, set_code, rarity
FROM pack_cards
WHERE pack_id = $1
ORDER BY created_at, card_id
`

func (r *PackRepo) GetPool(ctx context.Context, packID uuid.UUID) ([]models.PoolEntry, error) {
	rows, _ := r.DB.Query(ctx, getPool, packID)
	pool, err := pgx.CollectRows(rows, rowToPoolEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pool, nil
}

const topPool = `-- name: TopPool
SELECT pack_id, card_id, game_code, weight, value_cents, is_foil, condition,
       card_name, image_url, set_name, set_code, rarity
FROM pack_cards
WHERE pack_id = $1
ORDER BY value_cents DESC
LIMIT $2
`

func (r *PackRepo) TopPool(ctx context.Context, packID uuid.UUID, limit int) ([]models.PoolEntry, error) {
	rows, _ := r.DB.Query(ctx, topPool, packID, limit)
	pool, err := pgx.CollectRows(rows, rowToPoolEntry)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pool, nil
}

const createOpening = `-- name: CreateOpening
INSERT INTO pack_openings (id, created_at, user_id, pack_id, rips_spent, card_id, card_name, total_value_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, user_id, pack_id, rips_spent, card_id, card_name, total_value_cents
`

func (r *PackRepo) CreateOpening(ctx context.Context, opening models.Opening) (models.Opening, error) {
	if opening.ID == uuid.Nil {
		opening.ID = uuid.New()
	}
	if opening.CreatedAt.IsZero() {
		opening.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createOpening,
		opening.ID, opening.CreatedAt, opening.UserID, opening.PackID,
		opening.RipsSpent, opening.CardID, opening.CardName, opening.TotalValueCents)
	opening, err := pgx.CollectOneRow(rows, rowToOpening)
	if err != nil {
		return opening, fmt.Errorf("db error: %w", err)
	}

	return opening, nil
}

const incrementOpenings = `-- name: IncrementOpenings
UPDATE packs SET total_openings = total_openings + 1
WHERE id = $1
`

func (r *PackRepo) IncrementOpenings(ctx context.Context, packID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, incrementOpenings, packID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func rowToPack(row pgx.CollectableRow) (models.Pack, error) {
	var p models.Pack
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Name, &p.Slug, &p.Description, &p.ImageURL,
		&p.GameCode, &p.State, &p.RipCost, &p.TotalOpenings)
	return p, err
}

func rowToPoolEntry(row pgx.CollectableRow) (models.PoolEntry, error) {
	var e models.PoolEntry
	err := row.Scan(&e.PackID, &e.CardID, &e.GameCode, &e.Weight, &e.ValueCents, &e.Foil, &e.Condition,
		&e.CardName, &e.ImageURL, &e.SetName, &e.SetCode, &e.Rarity)
	return e, err
}

func rowToOpening(row pgx.CollectableRow) (models.Opening, error) {
	var o models.Opening
	err := row.Scan(&o.ID, &o.CreatedAt, &o.UserID, &o.PackID, &o.RipsSpent, &o.CardID, &o.CardName, &o.TotalValueCents)
	return o, err
}
