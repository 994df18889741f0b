package models

import (
	"time"

	"github.com/google/uuid"
)

// Pack activation states
const (
	PackStateDraft    = "draft"
	PackStateActive   = "active"
	PackStateArchived = "archived"
)

// Pack is a purchasable bundle of weighted card pool entries.
// Managed by admin flows; read only to the opening engine.
type Pack struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	Name          string
	Slug          string
	Description   string
	ImageURL      string
	GameCode      string
	State         string
	RipCost       int64
	TotalOpenings int64
}

func (p Pack) Active() bool {
	return p.State == PackStateActive
}

// PoolEntry is one weighted row of a pack's card pool.
// Weight need not sum to any fixed total across the pool.
type PoolEntry struct {
	PackID     uuid.UUID
	CardID     uuid.UUID
	GameCode   string
	Weight     float64
	ValueCents int64
	Foil       bool
	Condition  string

	// Display snapshot, denormalized at draw time
	CardName string
	ImageURL string
	SetName  string
	SetCode  string
	Rarity   string
}

// Opening is the append-only audit row written per successful pack opening.
type Opening struct {
	ID              uuid.UUID
	CreatedAt       time.Time
	UserID          uuid.UUID
	PackID          uuid.UUID
	RipsSpent       int64
	CardID          uuid.UUID
	CardName        string
	TotalValueCents int64
}
