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

type InventoryRepo struct {
	DB DBTX
}

const itemColumns = `id, created_at, user_id, opening_id, card_id, game_code, card_name, image_url,
       set_name, set_code, rarity, is_foil, condition, value_cents,
       is_sold, sold_at, sellback_rips, is_shipped, shipped_at, shipment_id`

const createItem = `-- name: CreateItem
INSERT INTO user_inventory (id, created_at, user_id, opening_id, card_id, game_code, card_name, image_url,
        set_name, set_code, rarity, is_foil, condition, value_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + itemColumns

func (r *InventoryRepo) CreateItem(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createItem,
		item.ID, item.CreatedAt, item.UserID, item.OpeningID, item.CardID, item.GameCode,
		item.CardName, item.ImageURL, item.SetName, item.SetCode, item.Rarity,
		item.Foil, item.Condition, item.ValueCents)
	item, err := pgx.CollectOneRow(rows, rowToItem)
	if err != nil {
		return item, fmt.Errorf("db error: %w", err)
	}

	return item, nil
}

const getItem = `-- name: GetItem
SELECT ` + itemColumns + `
FROM user_inventory
WHERE id = $1 AND user_id = $2
`

func (r *InventoryRepo) GetItem(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.InventoryItem, error) {
	rows, _ := r.DB.Query(ctx, getItem, id, userID)
	item, err := pgx.CollectOneRow(rows, rowToItem)

	switch {
	case err == nil:
		return item, nil
	case errors.Is(err, pgx.ErrNoRows):
		return item, apperrors.ErrItemNotFound
	default:
		return item, fmt.Errorf("db error: %w", err)
	}
}

// Sold/shipped exclusion is enforced by the WHERE clause, not by a prior
// read. When no row matches, itemConflict reports which terminal state won.
const markSold = `-- name: MarkSold
UPDATE user_inventory
SET is_sold = TRUE, sold_at = $3, sellback_rips = $4
WHERE id = $1 AND user_id = $2 AND NOT is_sold AND NOT is_shipped AND shipment_id IS NULL
RETURNING ` + itemColumns

func (r *InventoryRepo) MarkSold(ctx context.Context, id uuid.UUID, userID uuid.UUID, sellbackRips int64) (models.InventoryItem, error) {
	rows, _ := r.DB.Query(ctx, markSold, id, userID, time.Now(), sellbackRips)
	item, err := pgx.CollectOneRow(rows, rowToItem)

	switch {
	case err == nil:
		return item, nil
	case errors.Is(err, pgx.ErrNoRows):
		return item, r.itemConflict(ctx, id, userID)
	default:
		return item, fmt.Errorf("db error: %w", err)
	}
}

// The shipment_id comparison makes the link a compare-and-swap: the caller
// passes the link it observed, and a concurrent ship that got there first
// changes it, so the losing update matches no rows. Re-shipping an item whose
// previous shipment was cancelled passes that shipment's id as prev.
const setShipment = `-- name: SetShipment
UPDATE user_inventory
SET shipment_id = $3
WHERE id = $1 AND user_id = $2 AND NOT is_sold AND NOT is_shipped
  AND shipment_id IS NOT DISTINCT FROM $4
RETURNING ` + itemColumns

func (r *InventoryRepo) SetShipment(ctx context.Context, id uuid.UUID, userID uuid.UUID, shipmentID uuid.UUID, prev *uuid.UUID) (models.InventoryItem, error) {
	rows, _ := r.DB.Query(ctx, setShipment, id, userID, shipmentID, prev)
	item, err := pgx.CollectOneRow(rows, rowToItem)

	switch {
	case err == nil:
		return item, nil
	case errors.Is(err, pgx.ErrNoRows):
		return item, r.itemConflict(ctx, id, userID)
	default:
		return item, fmt.Errorf("db error: %w", err)
	}
}

const listItems = `-- name: ListItems
SELECT ` + itemColumns + `
FROM user_inventory
WHERE user_id = $1
ORDER BY (is_sold OR is_shipped), created_at DESC
`

func (r *InventoryRepo) ListItems(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error) {
	rows, _ := r.DB.Query(ctx, listItems, userID)
	items, err := pgx.CollectRows(rows, rowToItem)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

// itemConflict explains why a guarded update matched no rows
func (r *InventoryRepo) itemConflict(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	item, err := r.GetItem(ctx, id, userID)
	if err != nil {
		return err
	}

	switch {
	case item.Sold:
		return apperrors.ErrItemSold
	case item.Shipped:
		return apperrors.ErrItemShipped
	case item.ShipmentID != nil:
		return apperrors.ErrShipmentActive
	default:
		return errors.New("programming error, guarded update matched no rows for an unblocked item")
	}
}

func rowToItem(row pgx.CollectableRow) (models.InventoryItem, error) {
	var i models.InventoryItem
	err := row.Scan(&i.ID, &i.CreatedAt, &i.UserID, &i.OpeningID, &i.CardID, &i.GameCode,
		&i.CardName, &i.ImageURL, &i.SetName, &i.SetCode, &i.Rarity, &i.Foil, &i.Condition,
		&i.ValueCents, &i.Sold, &i.SoldAt, &i.SellbackRips, &i.Shipped, &i.ShippedAt, &i.ShipmentID)
	return i, err
}
