package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
)

type fixedRate struct {
	rate decimal.Decimal
}

func (f fixedRate) SellbackRate(_ context.Context) (decimal.Decimal, error) {
	return f.rate, nil
}

type fakeInventoryRepo struct {
	repository.InventoryRepo

	item models.InventoryItem
}

func (f *fakeInventoryRepo) GetItem(_ context.Context, id uuid.UUID, userID uuid.UUID) (models.InventoryItem, error) {
	if id != f.item.ID || userID != f.item.UserID {
		return models.InventoryItem{}, apperrors.ErrItemNotFound
	}
	return f.item, nil
}

func (f *fakeInventoryRepo) MarkSold(_ context.Context, id uuid.UUID, userID uuid.UUID, sellbackRips int64) (models.InventoryItem, error) {
	if id != f.item.ID || userID != f.item.UserID {
		return models.InventoryItem{}, apperrors.ErrItemNotFound
	}
	if f.item.Sold {
		return models.InventoryItem{}, apperrors.ErrItemSold
	}
	if f.item.Shipped {
		return models.InventoryItem{}, apperrors.ErrItemShipped
	}
	if f.item.ShipmentID != nil {
		return models.InventoryItem{}, apperrors.ErrShipmentActive
	}

	now := time.Now()
	f.item.Sold = true
	f.item.SoldAt = &now
	f.item.SellbackRips = &sellbackRips
	return f.item, nil
}

// Mirrors the conditional link update: only shipment_id changes, and only
// when the previously observed link still matches.
func (f *fakeInventoryRepo) SetShipment(_ context.Context, id uuid.UUID, userID uuid.UUID, shipmentID uuid.UUID, prev *uuid.UUID) (models.InventoryItem, error) {
	if f.item.Sold {
		return models.InventoryItem{}, apperrors.ErrItemSold
	}
	if f.item.Shipped {
		return models.InventoryItem{}, apperrors.ErrItemShipped
	}
	if !sameLink(f.item.ShipmentID, prev) {
		return models.InventoryItem{}, apperrors.ErrShipmentActive
	}

	f.item.ShipmentID = &shipmentID
	return f.item, nil
}

func sameLink(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type fakeLedgerRepo struct {
	repository.LedgerRepo

	balance int64
	entries []models.LedgerEntry
}

func (f *fakeLedgerRepo) Credit(_ context.Context, _ uuid.UUID, amount int64) (int64, error) {
	f.balance += amount
	return f.balance, nil
}

func (f *fakeLedgerRepo) CreateEntry(_ context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	entry.ID = uuid.New()
	f.entries = append(f.entries, entry)
	return entry, nil
}

type fakeShipmentRepo struct {
	repository.ShipmentRepo

	addresses []models.ShippingAddress
	shipments []models.Shipment
	active    bool
}

func (f *fakeShipmentRepo) Create(_ context.Context, shipment models.Shipment) (models.Shipment, error) {
	shipment.ID = uuid.New()
	f.shipments = append(f.shipments, shipment)
	return shipment, nil
}

func (f *fakeShipmentRepo) HasActiveForItem(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.active, nil
}

func (f *fakeShipmentRepo) GetAddress(_ context.Context, id uuid.UUID, userID uuid.UUID) (models.ShippingAddress, error) {
	for _, a := range f.addresses {
		if a.ID == id && a.UserID == userID {
			return a, nil
		}
	}
	return models.ShippingAddress{}, apperrors.ErrAddressNotFound
}

func (f *fakeShipmentRepo) GetDefaultAddress(_ context.Context, userID uuid.UUID) (models.ShippingAddress, error) {
	for _, a := range f.addresses {
		if a.UserID == userID && a.Default {
			return a, nil
		}
	}
	return models.ShippingAddress{}, apperrors.ErrNoAddress
}

type fakeStorage struct {
	repository.Storage

	inventory *fakeInventoryRepo
	ledger    *fakeLedgerRepo
	shipments *fakeShipmentRepo
}

func (f *fakeStorage) Inventory() repository.InventoryRepo { return f.inventory }
func (f *fakeStorage) Ledger() repository.LedgerRepo       { return f.ledger }
func (f *fakeStorage) Shipment() repository.ShipmentRepo   { return f.shipments }

func (f *fakeStorage) InTx(_ context.Context, fn func(repository.Storage) error) error {
	return fn(f)
}

func newFixture(valueCents int64) (*Service, *fakeStorage, uuid.UUID) {
	userID := uuid.New()
	storage := &fakeStorage{
		inventory: &fakeInventoryRepo{
			item: models.InventoryItem{
				ID:         uuid.New(),
				UserID:     userID,
				CardName:   "Black Lotus",
				ImageURL:   "https://img.example/lotus.jpg",
				ValueCents: valueCents,
			},
		},
		ledger:    &fakeLedgerRepo{},
		shipments: &fakeShipmentRepo{},
	}

	svc := NewService(storage, fixedRate{rate: decimal.NewFromFloat(0.85)}, nil)
	return svc, storage, userID
}

func TestSellbackRips(t *testing.T) {
	rate := decimal.NewFromFloat(0.85)

	tests := []struct {
		name       string
		valueCents int64
		rate       decimal.Decimal
		want       int64
	}{
		{name: "rounds down", valueCents: 500, rate: rate, want: 4},
		{name: "below one rip", valueCents: 100, rate: rate, want: 0},
		{name: "single cent", valueCents: 1, rate: rate, want: 0},
		{name: "high value", valueCents: 50000, rate: rate, want: 425},
		{name: "full rate", valueCents: 500, rate: decimal.NewFromInt(1), want: 5},
		{name: "zero value", valueCents: 0, rate: rate, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SellbackRips(tt.valueCents, tt.rate))
		})
	}
}

func TestTierForValue(t *testing.T) {
	tests := []struct {
		valueCents int64
		want       string
	}{
		{valueCents: 0, want: models.TierCommon},
		{valueCents: 499, want: models.TierCommon},
		{valueCents: 500, want: models.TierRare},
		{valueCents: 4999, want: models.TierRare},
		{valueCents: 5000, want: models.TierEpic},
		{valueCents: 49999, want: models.TierEpic},
		{valueCents: 50000, want: models.TierLegendary},
		{valueCents: 1250000, want: models.TierLegendary},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, TierForValue(tt.valueCents), "value %d", tt.valueCents)
	}
}

func TestSell(t *testing.T) {
	ctx := context.Background()

	t.Run("credits floored sellback and marks the item sold", func(t *testing.T) {
		svc, storage, userID := newFixture(500)

		result, err := svc.Sell(ctx, userID, storage.inventory.item.ID)

		require.NoError(t, err)
		require.Equal(t, int64(4), result.Rips)
		require.Equal(t, int64(4), result.NewBalance)
		require.True(t, result.Item.Sold)
		require.NotNil(t, result.Item.SellbackRips)
		require.Equal(t, int64(4), *result.Item.SellbackRips)

		require.Len(t, storage.ledger.entries, 1)
		entry := storage.ledger.entries[0]
		require.Equal(t, models.ReasonCardSellback, entry.Reason)
		require.Equal(t, int64(4), entry.Amount)
		require.Equal(t, int64(4), entry.BalanceAfter)
	})

	t.Run("zero-rip sellback still consumes the item", func(t *testing.T) {
		svc, storage, userID := newFixture(100)

		result, err := svc.Sell(ctx, userID, storage.inventory.item.ID)

		require.NoError(t, err)
		require.Equal(t, int64(0), result.Rips)
		require.True(t, storage.inventory.item.Sold)
	})

	t.Run("unknown item", func(t *testing.T) {
		svc, _, userID := newFixture(500)

		_, err := svc.Sell(ctx, userID, uuid.New())

		require.ErrorIs(t, err, apperrors.ErrItemNotFound)
	})

	t.Run("another user's item is invisible", func(t *testing.T) {
		svc, storage, _ := newFixture(500)

		_, err := svc.Sell(ctx, uuid.New(), storage.inventory.item.ID)

		require.ErrorIs(t, err, apperrors.ErrItemNotFound)
	})

	t.Run("already sold", func(t *testing.T) {
		svc, storage, userID := newFixture(500)
		storage.inventory.item.Sold = true

		_, err := svc.Sell(ctx, userID, storage.inventory.item.ID)

		require.ErrorIs(t, err, apperrors.ErrItemSold)
		require.Empty(t, storage.ledger.entries)
		require.Equal(t, int64(0), storage.ledger.balance)
	})

	t.Run("already shipped", func(t *testing.T) {
		svc, storage, userID := newFixture(500)
		storage.inventory.item.Shipped = true

		_, err := svc.Sell(ctx, userID, storage.inventory.item.ID)

		require.ErrorIs(t, err, apperrors.ErrItemShipped)
		require.Empty(t, storage.ledger.entries)
	})
}

func TestShip(t *testing.T) {
	ctx := context.Background()

	address := func(userID uuid.UUID, isDefault bool) models.ShippingAddress {
		return models.ShippingAddress{
			ID:         uuid.New(),
			UserID:     userID,
			Name:       "Pat Doe",
			Phone:      "+1 555 0100",
			Line1:      "1 Main St",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    "US",
			Default:    isDefault,
		}
	}

	t.Run("ships to the default address", func(t *testing.T) {
		svc, storage, userID := newFixture(60000)
		storage.shipments.addresses = []models.ShippingAddress{address(userID, true)}

		shipment, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID})

		require.NoError(t, err)
		require.Equal(t, models.ShipmentStatusPending, shipment.Status)
		require.Equal(t, models.TierLegendary, shipment.CardTier)
		require.Equal(t, "Black Lotus", shipment.CardName)
		require.Equal(t, int64(60000), shipment.ValueCents)
		require.Equal(t, "1 Main St, Springfield, IL, 62701, US", shipment.AddressFull)
		require.Equal(t, "Pat Doe", shipment.ShippingName)

		require.NotNil(t, storage.inventory.item.ShipmentID)
		require.Equal(t, shipment.ID, *storage.inventory.item.ShipmentID)
		// The shipped flag flips later in the fulfillment lifecycle, not here
		require.False(t, storage.inventory.item.Shipped)
	})

	t.Run("ships to an explicit address", func(t *testing.T) {
		svc, storage, userID := newFixture(600)
		addr := address(userID, false)
		storage.shipments.addresses = []models.ShippingAddress{address(userID, true), addr}

		shipment, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID, AddressID: addr.ID})

		require.NoError(t, err)
		require.Equal(t, addr.ID, shipment.AddressID)
		require.Equal(t, models.TierRare, shipment.CardTier)
	})

	t.Run("no address on file", func(t *testing.T) {
		svc, storage, userID := newFixture(600)

		_, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID})

		require.ErrorIs(t, err, apperrors.ErrNoAddress)
		require.Nil(t, storage.inventory.item.ShipmentID)
	})

	t.Run("another user's address is rejected", func(t *testing.T) {
		svc, storage, userID := newFixture(600)
		foreign := address(uuid.New(), true)
		storage.shipments.addresses = []models.ShippingAddress{foreign}

		_, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID, AddressID: foreign.ID})

		require.ErrorIs(t, err, apperrors.ErrAddressNotFound)
	})

	t.Run("sold item cannot ship", func(t *testing.T) {
		svc, storage, userID := newFixture(600)
		storage.inventory.item.Sold = true
		storage.shipments.addresses = []models.ShippingAddress{address(userID, true)}

		_, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID})

		require.ErrorIs(t, err, apperrors.ErrItemSold)
		require.Empty(t, storage.shipments.shipments)
	})

	t.Run("item with an active shipment cannot ship again", func(t *testing.T) {
		svc, storage, userID := newFixture(600)
		storage.shipments.active = true
		storage.shipments.addresses = []models.ShippingAddress{address(userID, true)}

		_, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID})

		require.ErrorIs(t, err, apperrors.ErrShipmentActive)
	})

	t.Run("shipped item cannot ship", func(t *testing.T) {
		svc, storage, userID := newFixture(600)
		storage.inventory.item.Shipped = true
		storage.shipments.addresses = []models.ShippingAddress{address(userID, true)}

		_, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID})

		require.ErrorIs(t, err, apperrors.ErrItemShipped)
	})

	t.Run("re-ships after a cancelled shipment", func(t *testing.T) {
		svc, storage, userID := newFixture(600)
		cancelled := uuid.New()
		storage.inventory.item.ShipmentID = &cancelled
		storage.shipments.addresses = []models.ShippingAddress{address(userID, true)}

		shipment, err := svc.Ship(ctx, userID, ShipRequest{ItemID: storage.inventory.item.ID})

		require.NoError(t, err)
		require.NotEqual(t, cancelled, shipment.ID)
		require.NotNil(t, storage.inventory.item.ShipmentID)
		require.Equal(t, shipment.ID, *storage.inventory.item.ShipmentID)
	})
}
