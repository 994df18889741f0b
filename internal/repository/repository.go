package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/justtherip/packvault/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create profile for a user provisioned by the external auth system
	// Balance starts at zero; it is only ever mutated through LedgerRepo
	CreateUser(ctx context.Context, id uuid.UUID, email string) (models.User, error)

	// Get user by id
	// If user not found must return apperrors.ErrUserNotFound
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// Ledger repository interface
// Balance mutation and the matching ledger entry must be executed inside
// one transaction (use Storage.InTx), so neither is observable alone.
type LedgerRepo interface {
	// Current balance for a user
	// If user not found must return apperrors.ErrUserNotFound
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)

	// Atomically decrement balance if and only if balance >= amount.
	// The guard lives in the UPDATE itself, so two concurrent debits can
	// never both succeed against the same funds.
	// Returns apperrors.ErrInsufficientFunds without mutating anything
	// if the user cannot afford the amount.
	Debit(ctx context.Context, userID uuid.UUID, amount int64) (newBalance int64, err error)

	// Atomically increment balance. Fails only if the user is unknown.
	Credit(ctx context.Context, userID uuid.UUID, amount int64) (newBalance int64, err error)

	// Append an immutable ledger entry. Entries are never updated or deleted.
	CreateEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error)

	// Entries for a user, newest first
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error)

	// Sum of all entry amounts for a user; must equal the current balance
	SumEntries(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Pack repository interface
type PackRepo interface {
	// If pack not found must return apperrors.ErrPackNotFound
	GetPack(ctx context.Context, id uuid.UUID) (models.Pack, error)

	// Active packs, newest first
	ListActive(ctx context.Context) ([]models.Pack, error)

	// Full weighted card pool for a pack, joined with display data.
	// Read once per request: the returned slice is the snapshot both
	// Draw and Probabilities must operate on.
	GetPool(ctx context.Context, packID uuid.UUID) ([]models.PoolEntry, error)

	// Top pool entries by value, for storefront display
	TopPool(ctx context.Context, packID uuid.UUID, limit int) ([]models.PoolEntry, error)

	// Append a pack opening audit row
	CreateOpening(ctx context.Context, opening models.Opening) (models.Opening, error)

	IncrementOpenings(ctx context.Context, packID uuid.UUID) error
}

// Inventory repository interface
type InventoryRepo interface {
	CreateItem(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error)

	// If the item does not exist or belongs to another user must return
	// apperrors.ErrItemNotFound
	GetItem(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.InventoryItem, error)

	// Conditionally mark an item sold. The not-sold/not-shipped guard is
	// part of the UPDATE; when no row matches, the caller inspects the
	// item to report apperrors.ErrItemSold or apperrors.ErrItemShipped.
	MarkSold(ctx context.Context, id uuid.UUID, userID uuid.UUID, sellbackRips int64) (models.InventoryItem, error)

	// Link an item to its shipment. The update only matches when the item is
	// unsold, unshipped, and still carries the link the caller observed in
	// prev (nil for a never-shipped item). A lost race reports
	// apperrors.ErrShipmentActive.
	SetShipment(ctx context.Context, id uuid.UUID, userID uuid.UUID, shipmentID uuid.UUID, prev *uuid.UUID) (models.InventoryItem, error)

	// Items for a user, unsold and unshipped first, then newest first
	ListItems(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error)
}

// Shipment repository interface
type ShipmentRepo interface {
	Create(ctx context.Context, shipment models.Shipment) (models.Shipment, error)

	// True when the item has a shipment in pending/processing/shipped state
	HasActiveForItem(ctx context.Context, itemID uuid.UUID) (bool, error)

	// If address not found or owned by another user must return
	// apperrors.ErrAddressNotFound
	GetAddress(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.ShippingAddress, error)

	// Default address for a user; apperrors.ErrNoAddress when there is none
	GetDefaultAddress(ctx context.Context, userID uuid.UUID) (models.ShippingAddress, error)
}

// Catalog repository interface for externally sourced market data.
// Upserts are idempotent: products by product_id (last write wins),
// prices by (product_id, variant, as_of_date).
type CatalogRepo interface {
	UpsertProducts(ctx context.Context, game string, products []models.CatalogProduct) error
	UpsertPrices(ctx context.Context, game string, prices []models.CatalogPrice) error
}

// SyncLog repository interface
type SyncLogRepo interface {
	// One summary row per sync run
	CreateRun(ctx context.Context, stats models.SyncStats) error
}

// Config repository for operator tunables stored in system_config
type ConfigRepo interface {
	// Value by key; empty string and no error when the key is absent
	GetValue(ctx context.Context, key string) (string, error)
}

// Storage aggregates all repositories over one connection or transaction
type Storage interface {
	User() UserRepo
	Ledger() LedgerRepo
	Pack() PackRepo
	Inventory() InventoryRepo
	Shipment() ShipmentRepo
	Catalog() CatalogRepo
	SyncLog() SyncLogRepo
	Config() ConfigRepo

	// Run fn inside a transaction. The Storage passed to fn is bound to
	// that transaction; returning an error rolls everything back.
	InTx(ctx context.Context, fn func(Storage) error) error
}
