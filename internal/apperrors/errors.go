package apperrors

import (
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")

	ErrPackNotFound      = errors.New("pack not found")
	ErrPackInactive      = errors.New("pack is not active")
	ErrInsufficientFunds = errors.New("insufficient rip balance")

	ErrEmptyPool    = errors.New("pack card pool is empty")
	ErrDrawFailed   = errors.New("card draw failed")
	ErrCommitFailed = errors.New("opening commit failed")

	ErrItemNotFound   = errors.New("inventory item not found")
	ErrItemSold       = errors.New("inventory item already sold")
	ErrItemShipped    = errors.New("inventory item already shipped")
	ErrShipmentActive = errors.New("inventory item has an active shipment")

	ErrNoAddress       = errors.New("no shipping address available")
	ErrAddressNotFound = errors.New("shipping address not found")

	// ErrInconsistency marks a failed compensation: a debit happened but
	// neither an inventory item nor a refund could be committed.
	// Real currency is stuck, so callers must log it loudly, never swallow it.
	ErrInconsistency = errors.New("ledger inconsistency")

	ErrUpstream = errors.New("upstream catalog api unavailable")
)
