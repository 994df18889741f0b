package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
)

type fakeLedgerRepo struct {
	repository.LedgerRepo

	balance int64
	entries []models.LedgerEntry
}

func (f *fakeLedgerRepo) GetBalance(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.balance, nil
}

func (f *fakeLedgerRepo) Debit(_ context.Context, _ uuid.UUID, amount int64) (int64, error) {
	if f.balance < amount {
		return 0, apperrors.ErrInsufficientFunds
	}
	f.balance -= amount
	return f.balance, nil
}

func (f *fakeLedgerRepo) Credit(_ context.Context, _ uuid.UUID, amount int64) (int64, error) {
	f.balance += amount
	return f.balance, nil
}

func (f *fakeLedgerRepo) CreateEntry(_ context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeLedgerRepo) SumEntries(_ context.Context, _ uuid.UUID) (int64, error) {
	var sum int64
	for _, e := range f.entries {
		sum += e.Amount
	}
	return sum, nil
}

type fakeStorage struct {
	repository.Storage

	ledger *fakeLedgerRepo
}

func (f *fakeStorage) Ledger() repository.LedgerRepo { return f.ledger }

func (f *fakeStorage) InTx(_ context.Context, fn func(repository.Storage) error) error {
	return fn(f)
}

func newFixture(balance int64) (*Service, *fakeLedgerRepo) {
	repo := &fakeLedgerRepo{balance: balance}
	return NewService(&fakeStorage{ledger: repo}), repo
}

func TestDebit(t *testing.T) {
	userID := uuid.New()

	t.Run("writes a negative entry with the new balance", func(t *testing.T) {
		svc, repo := newFixture(100)

		balance, err := svc.Debit(t.Context(), userID, 30, models.ReasonPackOpening, map[string]any{"pack_id": "p1"})

		require.NoError(t, err)
		require.Equal(t, int64(70), balance)
		require.Len(t, repo.entries, 1)
		require.Equal(t, int64(-30), repo.entries[0].Amount)
		require.Equal(t, int64(70), repo.entries[0].BalanceAfter)
		require.Equal(t, models.ReasonPackOpening, repo.entries[0].Reason)
	})

	t.Run("insufficient funds leaves no entry", func(t *testing.T) {
		svc, repo := newFixture(10)

		_, err := svc.Debit(t.Context(), userID, 30, models.ReasonPackOpening, nil)

		require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
		require.Empty(t, repo.entries)
		require.Equal(t, int64(10), repo.balance)
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		svc, repo := newFixture(100)

		_, err := svc.Debit(t.Context(), userID, 0, models.ReasonPackOpening, nil)
		require.Error(t, err)

		_, err = svc.Debit(t.Context(), userID, -5, models.ReasonPackOpening, nil)
		require.Error(t, err)

		require.Empty(t, repo.entries)
	})
}

func TestCredit(t *testing.T) {
	userID := uuid.New()

	t.Run("writes a positive entry", func(t *testing.T) {
		svc, repo := newFixture(0)

		balance, err := svc.Credit(t.Context(), userID, 50, models.ReasonPurchase, nil)

		require.NoError(t, err)
		require.Equal(t, int64(50), balance)
		require.Len(t, repo.entries, 1)
		require.Equal(t, int64(50), repo.entries[0].Amount)
		require.Equal(t, int64(50), repo.entries[0].BalanceAfter)
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		svc, _ := newFixture(0)

		_, err := svc.Credit(t.Context(), userID, 0, models.ReasonPurchase, nil)

		require.Error(t, err)
	})
}

func TestReconcile(t *testing.T) {
	userID := uuid.New()

	t.Run("zero drift after balanced mutations", func(t *testing.T) {
		svc, _ := newFixture(0)

		_, err := svc.Credit(t.Context(), userID, 100, models.ReasonPurchase, nil)
		require.NoError(t, err)
		_, err = svc.Debit(t.Context(), userID, 40, models.ReasonPackOpening, nil)
		require.NoError(t, err)

		drift, err := svc.Reconcile(t.Context(), userID)

		require.NoError(t, err)
		require.Zero(t, drift)
	})

	t.Run("reports drift when an entry is missing", func(t *testing.T) {
		svc, repo := newFixture(0)

		_, err := svc.Credit(t.Context(), userID, 100, models.ReasonPurchase, nil)
		require.NoError(t, err)

		// Simulate a balance mutation that skipped the ledger
		repo.balance += 25

		drift, err := svc.Reconcile(t.Context(), userID)

		require.NoError(t, err)
		require.Equal(t, int64(25), drift)
	})
}
