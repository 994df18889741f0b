package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game codes select which catalog tables a row lands in
const (
	GameMTG     = "mtg"
	GamePokemon = "pokemon"
)

// CatalogProduct is the internal shape of one externally sourced product.
// Keyed by the external ProductID; re-syncs are last-write-wins.
// Derived holds per-game columns computed from the source extended data
// (mtg: rarity/number/oracle text/power/toughness, pokemon: hp/stage/...).
type CatalogProduct struct {
	ProductID    int64
	Name         string
	CleanName    string
	ImageURL     string
	URL          string
	CategoryID   int64
	GroupID      int64
	ImageCount   int
	Presale      bool
	PresaleNote  string
	ReleasedOn   *time.Time
	Derived      map[string]string
	ExtendedData []ExtendedField
	ModifiedOn   time.Time
	SyncedAt     time.Time
}

type ExtendedField struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

// CatalogPrice is one price snapshot. (ProductID, Variant, AsOfDate) is
// the natural key, which makes same-day re-syncs idempotent.
type CatalogPrice struct {
	ProductID int64
	Variant   string
	Low       decimal.NullDecimal
	Mid       decimal.NullDecimal
	High      decimal.NullDecimal
	Market    decimal.NullDecimal
	DirectLow decimal.NullDecimal
	AsOfDate  time.Time
	SyncedAt  time.Time
}

// SyncError is one structured failure recorded during a sync run.
// A group level failure never aborts sibling groups.
type SyncError struct {
	Type       string `json:"type"`
	Message    string `json:"error"`
	Count      int    `json:"count,omitempty"`
	GroupID    int64  `json:"group_id,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
}

// SyncStats summarizes one catalog sync run. Persisted as a single
// tcg_sync_runs row; DurationMS is wall clock, not a per-category sum.
type SyncStats struct {
	StartedAt           time.Time
	FinishedAt          time.Time
	CategoriesProcessed int
	GroupsProcessed     int
	TotalItems          int
	ProductsUpserted    int
	PricesUpserted      int
	Errors              []SyncError
	DurationMS          int64
}
