package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
)

// Value thresholds per tier, in cents
const (
	tierLegendaryCents = 50000
	tierEpicCents      = 5000
	tierRareCents      = 500
)

type rateSource interface {
	SellbackRate(ctx context.Context) (decimal.Decimal, error)
}

// Service covers the two exits of an inventory item: selling back to
// the ledger and shipping the physical card. Both are one-way and
// mutually exclusive.
type Service struct {
	storage repository.Storage
	rates   rateSource
	logger  logger.Logger
}

func NewService(storage repository.Storage, rates rateSource, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage: storage,
		rates:   rates,
		logger:  l,
	}
}

func (s *Service) ListItems(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error) {
	return s.storage.Inventory().ListItems(ctx, userID)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.InventoryItem, error) {
	return s.storage.Inventory().GetItem(ctx, id, userID)
}

// SellbackRips converts a card value in cents into whole Rips at the
// given rate, rounding down. Fractional Rips are never credited.
func SellbackRips(valueCents int64, rate decimal.Decimal) int64 {
	rips := decimal.NewFromInt(valueCents).Mul(rate).Div(decimal.NewFromInt(100))
	return rips.Floor().IntPart()
}

// SellResult reports the credited sellback
type SellResult struct {
	Item       models.InventoryItem
	Rips       int64
	NewBalance int64
}

// Sell converts an item back into Rips. The sold flag and the credit
// commit in one transaction; a concurrent sell or ship of the same item
// loses on the conditional UPDATE and the credit never happens.
func (s *Service) Sell(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) (SellResult, error) {
	item, err := s.storage.Inventory().GetItem(ctx, itemID, userID)
	if err != nil {
		return SellResult{}, err
	}

	rate, err := s.rates.SellbackRate(ctx)
	if err != nil {
		return SellResult{}, fmt.Errorf("read sellback rate: %w", err)
	}

	rips := SellbackRips(item.ValueCents, rate)

	var result SellResult
	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		sold, err := storage.Inventory().MarkSold(ctx, itemID, userID, rips)
		if err != nil {
			return err
		}

		newBalance, err := storage.Ledger().Credit(ctx, userID, rips)
		if err != nil {
			return err
		}

		_, err = storage.Ledger().CreateEntry(ctx, models.LedgerEntry{
			UserID:       userID,
			Amount:       rips,
			BalanceAfter: newBalance,
			Reason:       models.ReasonCardSellback,
			Metadata: map[string]any{
				"item_id":     itemID.String(),
				"card_name":   item.CardName,
				"value_cents": item.ValueCents,
				"rate":        rate.String(),
			},
		})
		if err != nil {
			return err
		}

		result = SellResult{Item: sold, Rips: rips, NewBalance: newBalance}
		return nil
	})
	if err != nil {
		return SellResult{}, err
	}

	s.logger.Info("Item sold back",
		"user_id", userID, "item_id", itemID, "rips", rips, "value_cents", item.ValueCents)

	return result, nil
}

// ShipRequest selects the destination. Zero AddressID means the user's
// default address.
type ShipRequest struct {
	ItemID    uuid.UUID
	AddressID uuid.UUID
}

// Ship requests physical delivery of an item. The shipment row snapshots
// the card and the destination so later address edits do not rewrite
// history.
func (s *Service) Ship(ctx context.Context, userID uuid.UUID, req ShipRequest) (models.Shipment, error) {
	item, err := s.storage.Inventory().GetItem(ctx, req.ItemID, userID)
	if err != nil {
		return models.Shipment{}, err
	}
	if item.Sold {
		return models.Shipment{}, apperrors.ErrItemSold
	}
	if item.Shipped {
		return models.Shipment{}, apperrors.ErrItemShipped
	}

	// An item linked to a cancelled shipment may ship again; only an
	// in-flight shipment blocks.
	active, err := s.storage.Shipment().HasActiveForItem(ctx, req.ItemID)
	if err != nil {
		return models.Shipment{}, err
	}
	if active {
		return models.Shipment{}, apperrors.ErrShipmentActive
	}

	var address models.ShippingAddress
	if req.AddressID == uuid.Nil {
		address, err = s.storage.Shipment().GetDefaultAddress(ctx, userID)
	} else {
		address, err = s.storage.Shipment().GetAddress(ctx, req.AddressID, userID)
	}
	if err != nil {
		return models.Shipment{}, err
	}

	var shipment models.Shipment
	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		shipment, err = storage.Shipment().Create(ctx, models.Shipment{
			UserID:        userID,
			ItemID:        item.ID,
			Status:        models.ShipmentStatusPending,
			AddressID:     address.ID,
			AddressFull:   address.Full(),
			ShippingName:  address.Name,
			ShippingPhone: address.Phone,
			CardName:      item.CardName,
			CardTier:      TierForValue(item.ValueCents),
			ValueCents:    item.ValueCents,
			ImageURL:      item.ImageURL,
		})
		if err != nil {
			return err
		}

		_, err = storage.Inventory().SetShipment(ctx, item.ID, userID, shipment.ID, item.ShipmentID)
		return err
	})
	if err != nil {
		// A concurrent sell or ship can win between the precheck and the
		// conditional UPDATE; the loser's shipment row rolls back with the
		// transaction and ErrItemSold/ErrShipmentActive surface here.
		return models.Shipment{}, err
	}

	s.logger.Info("Shipment requested",
		"user_id", userID, "item_id", item.ID, "shipment_id", shipment.ID, "tier", shipment.CardTier)

	return shipment, nil
}

// TierForValue buckets a card value into its display tier
func TierForValue(valueCents int64) string {
	switch {
	case valueCents >= tierLegendaryCents:
		return models.TierLegendary
	case valueCents >= tierEpicCents:
		return models.TierEpic
	case valueCents >= tierRareCents:
		return models.TierRare
	default:
		return models.TierCommon
	}
}
