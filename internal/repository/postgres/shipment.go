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

type ShipmentRepo struct {
	DB DBTX
}

const createShipment = `-- name: CreateShipment
INSERT INTO shipments (id, created_at, user_id, inventory_item_id, status, shipping_address_id,
        shipping_address_full, shipping_name, shipping_phone, card_name, card_tier, card_value_cents, card_image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, created_at, user_id, inventory_item_id, status, shipping_address_id,
        shipping_address_full, shipping_name, shipping_phone, card_name, card_tier, card_value_cents, card_image_url
`

func (r *ShipmentRepo) Create(ctx context.Context, shipment models.Shipment) (models.Shipment, error) {
	if shipment.ID == uuid.Nil {
		shipment.ID = uuid.New()
	}
	if shipment.CreatedAt.IsZero() {
		shipment.CreatedAt = time.Now()
	}
	if shipment.Status == "" {
		shipment.Status = models.ShipmentStatusPending
	}

	rows, _ := r.DB.Query(ctx, createShipment,
		shipment.ID, shipment.CreatedAt, shipment.UserID, shipment.ItemID, shipment.Status,
		shipment.AddressID, shipment.AddressFull, shipment.ShippingName, shipment.ShippingPhone,
		shipment.CardName, shipment.CardTier, shipment.ValueCents, shipment.ImageURL)
	shipment, err := pgx.CollectOneRow(rows, rowToShipment)
	if err != nil {
		return shipment, fmt.Errorf("db error: %w", err)
	}

	return shipment, nil
}

const hasActiveForItem = `-- name: HasActiveForItem
SELECT EXISTS (
	SELECT 1 FROM shipments
	WHERE inventory_item_id = $1 AND status IN ('pending', 'processing', 'shipped')
)
`

func (r *ShipmentRepo) HasActiveForItem(ctx context.Context, itemID uuid.UUID) (bool, error) {
	rows, _ := r.DB.Query(ctx, hasActiveForItem, itemID)
	active, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return active, nil
}

const addressColumns = `id, user_id, name, phone, address_line1, address_line2, city, state, postal_code, country, is_default`

const getAddress = `-- name: GetAddress
SELECT ` + addressColumns + ` FROM shipping_addresses
WHERE id = $1 AND user_id = $2
`

func (r *ShipmentRepo) GetAddress(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.ShippingAddress, error) {
	rows, _ := r.DB.Query(ctx, getAddress, id, userID)
	address, err := pgx.CollectOneRow(rows, rowToAddress)

	switch {
	case err == nil:
		return address, nil
	case errors.Is(err, pgx.ErrNoRows):
		return address, apperrors.ErrAddressNotFound
	default:
		return address, fmt.Errorf("db error: %w", err)
	}
}

const getDefaultAddress = `-- name: GetDefaultAddress
SELECT ` + addressColumns + ` FROM shipping_addresses
WHERE user_id = $1 AND is_default
`

func (r *ShipmentRepo) GetDefaultAddress(ctx context.Context, userID uuid.UUID) (models.ShippingAddress, error) {
	rows, _ := r.DB.Query(ctx, getDefaultAddress, userID)
	address, err := pgx.CollectOneRow(rows, rowToAddress)

	switch {
	case err == nil:
		return address, nil
	case errors.Is(err, pgx.ErrNoRows):
		return address, apperrors.ErrNoAddress
	default:
		return address, fmt.Errorf("db error: %w", err)
	}
}

func rowToShipment(row pgx.CollectableRow) (models.Shipment, error) {
	var s models.Shipment
	err := row.Scan(&s.ID, &s.CreatedAt, &s.UserID, &s.ItemID, &s.Status, &s.AddressID,
		&s.AddressFull, &s.ShippingName, &s.ShippingPhone, &s.CardName, &s.CardTier, &s.ValueCents, &s.ImageURL)
	return s, err
}

func rowToAddress(row pgx.CollectableRow) (models.ShippingAddress, error) {
	var a models.ShippingAddress
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Line1, &a.Line2, &a.City, &a.State,
		&a.PostalCode, &a.Country, &a.Default)
	return a, err
}
