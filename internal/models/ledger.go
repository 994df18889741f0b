package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry reason codes
const (
	ReasonPackOpening  = "pack_opening"
	ReasonCardSellback = "card_sellback"
	ReasonPurchase     = "purchase"
	ReasonRefund       = "refund"
)

// LedgerEntry is an immutable record of one balance mutation.
// Amount is negative for spends and positive for credits; BalanceAfter
// snapshots the resulting balance. Entries are append only: the sum of
// all entries for a user must equal the current balance.
type LedgerEntry struct {
	ID           uuid.UUID
	CreatedAt    time.Time
	UserID       uuid.UUID
	Amount       int64
	BalanceAfter int64
	Reason       string
	Metadata     map[string]any
}
