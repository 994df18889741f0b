package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is a drawn card owned by exactly one user.
// Sold and shipped are mutually exclusive terminal states; once either is
// set the item is immutable except for in-flight shipment status fields.
type InventoryItem struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UserID       uuid.UUID
	OpeningID    uuid.UUID
	CardID       uuid.UUID
	GameCode     string
	CardName     string
	ImageURL     string
	SetName      string
	SetCode      string
	Rarity       string
	Foil         bool
	Condition    string
	ValueCents   int64
	Sold         bool
	SoldAt       *time.Time
	SellbackRips *int64
	Shipped      bool
	ShippedAt    *time.Time
	ShipmentID   *uuid.UUID
}
