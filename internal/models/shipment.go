package models

import (
	"time"

	"github.com/google/uuid"
)

// Shipment statuses. Pending, processing and shipped count as active:
// an item with an active shipment cannot be shipped again or sold.
const (
	ShipmentStatusPending    = "pending"
	ShipmentStatusProcessing = "processing"
	ShipmentStatusShipped    = "shipped"
	ShipmentStatusDelivered  = "delivered"
	ShipmentStatusCancelled  = "cancelled"
)

// Card tiers derived from value at shipment time
const (
	TierCommon    = "common"
	TierRare      = "rare"
	TierEpic      = "epic"
	TierLegendary = "legendary"
)

// Shipment snapshots the card and destination at the time the user
// requested physical delivery.
type Shipment struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	UserID        uuid.UUID
	ItemID        uuid.UUID
	Status        string
	AddressID     uuid.UUID
	AddressFull   string
	ShippingName  string
	ShippingPhone string
	CardName      string
	CardTier      string
	ValueCents    int64
	ImageURL      string
}

type ShippingAddress struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Default    bool
}

// Full renders the single-line form stored on shipments.
func (a ShippingAddress) Full() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	full := ""
	for i, p := range parts {
		if i > 0 {
			full += ", "
		}
		full += p
	}
	return full
}
