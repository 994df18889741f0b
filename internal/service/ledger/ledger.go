package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
)

// Service owns the Rip balance. Every mutation goes through Debit or
// Credit; both write the balance change and the matching ledger entry
// inside one transaction, so neither is ever observable without the other.
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

// GetBalance returns the current balance.
// Unknown users fail with apperrors.ErrUserNotFound (never a silent zero).
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.storage.Ledger().GetBalance(ctx, userID)
}

// Debit spends amount and appends a negative ledger entry.
// Fails with apperrors.ErrInsufficientFunds without any mutation when the
// balance cannot cover the amount.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int64, reason string, metadata map[string]any) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	var newBalance int64
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		balance, err := storage.Ledger().Debit(ctx, userID, amount)
		if err != nil {
			return err
		}

		_, err = storage.Ledger().CreateEntry(ctx, models.LedgerEntry{
			UserID:       userID,
			Amount:       -amount,
			BalanceAfter: balance,
			Reason:       reason,
			Metadata:     metadata,
		})
		if err != nil {
			return fmt.Errorf("can't record ledger entry: %w", err)
		}

		newBalance = balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	return newBalance, nil
}

// Credit adds amount and appends a positive ledger entry.
// Always succeeds for a known user.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int64, reason string, metadata map[string]any) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	var newBalance int64
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		balance, err := storage.Ledger().Credit(ctx, userID, amount)
		if err != nil {
			return err
		}

		_, err = storage.Ledger().CreateEntry(ctx, models.LedgerEntry{
			UserID:       userID,
			Amount:       amount,
			BalanceAfter: balance,
			Reason:       reason,
			Metadata:     metadata,
		})
		if err != nil {
			return fmt.Errorf("can't record ledger entry: %w", err)
		}

		newBalance = balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	return newBalance, nil
}

// History returns the most recent ledger entries for a user
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	return s.storage.Ledger().ListEntries(ctx, userID, limit)
}

// Reconcile checks that the sum of all entries equals the stored balance.
// Zero drift is an invariant; any other value means entries and balance
// diverged and needs operator attention.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (drift int64, err error) {
	var sum, balance int64
	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		balance, err = storage.Ledger().GetBalance(ctx, userID)
		if err != nil {
			return err
		}

		sum, err = storage.Ledger().SumEntries(ctx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}

	return balance - sum, nil
}
