package models

import (
	"time"

	"github.com/google/uuid"
)

// User profile as provisioned by the external auth system.
// The Rip balance is owned by the ledger and must never be set directly.
type User struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	Email      string
	RipBalance int64
}
