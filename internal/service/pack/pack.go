package pack

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
	"github.com/justtherip/packvault/internal/service/draw"
)

const topCardsPerPack = 3

// DefaultSellbackRate applies when system_config carries no override
var DefaultSellbackRate = decimal.NewFromFloat(0.85)

type ledgerService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, reason string, metadata map[string]any) (int64, error)
	Credit(ctx context.Context, userID uuid.UUID, amount int64, reason string, metadata map[string]any) (int64, error)
}

type drawEngine interface {
	Draw(pool []models.PoolEntry) (models.PoolEntry, error)
	Probabilities(pool []models.PoolEntry) ([]draw.Probability, error)
	Summarize(pool []models.PoolEntry) (draw.Summary, error)
}

// Service orchestrates pack openings:
// Validating -> Debiting -> Drawing -> Committing, with a compensating
// refund whenever the debit succeeded but the opening could not commit.
type Service struct {
	storage repository.Storage
	ledger  ledgerService
	engine  drawEngine
	logger  logger.Logger
}

func NewService(storage repository.Storage, ledger ledgerService, engine drawEngine, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage: storage,
		ledger:  ledger,
		engine:  engine,
		logger:  l,
	}
}

// InsufficientFundsError carries what the caller needs to render the
// shortfall. Unwraps to apperrors.ErrInsufficientFunds.
type InsufficientFundsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient rip balance: have %d, need %d", e.Balance, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error {
	return apperrors.ErrInsufficientFunds
}

// OpenResult is the outcome of one successful pack opening
type OpenResult struct {
	NewBalance int64
	Item       models.InventoryItem
	OpeningID  uuid.UUID
}

// OpenPack executes the full opening transaction for one pack.
//
// Invariant: at most one unrefunded debit per attempt. Currency only
// leaves the ledger together with a committed inventory item or a
// matching refund entry of equal magnitude.
func (s *Service) OpenPack(ctx context.Context, userID uuid.UUID, packID uuid.UUID) (OpenResult, error) {
	// Validating
	pack, err := s.storage.Pack().GetPack(ctx, packID)
	if err != nil {
		return OpenResult{}, err
	}
	if !pack.Active() {
		return OpenResult{}, apperrors.ErrPackInactive
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return OpenResult{}, err
	}
	if balance < pack.RipCost {
		return OpenResult{}, &InsufficientFundsError{Balance: balance, Required: pack.RipCost}
	}

	// Debiting. The affordability check above is advisory only; the debit
	// itself is the serialization point for concurrent requests.
	newBalance, err := s.ledger.Debit(ctx, userID, pack.RipCost, models.ReasonPackOpening, map[string]any{
		"pack_id": pack.ID.String(),
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientFunds) {
			return OpenResult{}, &InsufficientFundsError{Balance: balance, Required: pack.RipCost}
		}
		return OpenResult{}, err
	}

	// Drawing, over one pool snapshot
	pool, err := s.storage.Pack().GetPool(ctx, packID)
	if err == nil && len(pool) == 0 {
		err = apperrors.ErrEmptyPool
	}
	var card models.PoolEntry
	if err == nil {
		card, err = s.engine.Draw(pool)
	}
	if err != nil {
		return OpenResult{}, s.refund(ctx, userID, pack, fmt.Errorf("%w: %w", apperrors.ErrDrawFailed, err))
	}

	// Committing: opening record, inventory item and the openings counter
	// land in one transaction
	var opening models.Opening
	var item models.InventoryItem
	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		opening, err = storage.Pack().CreateOpening(ctx, models.Opening{
			UserID:          userID,
			PackID:          pack.ID,
			RipsSpent:       pack.RipCost,
			CardID:          card.CardID,
			CardName:        card.CardName,
			TotalValueCents: card.ValueCents,
		})
		if err != nil {
			return err
		}

		item, err = storage.Inventory().CreateItem(ctx, models.InventoryItem{
			UserID:     userID,
			OpeningID:  opening.ID,
			CardID:     card.CardID,
			GameCode:   card.GameCode,
			CardName:   card.CardName,
			ImageURL:   card.ImageURL,
			SetName:    card.SetName,
			SetCode:    card.SetCode,
			Rarity:     card.Rarity,
			Foil:       card.Foil,
			Condition:  card.Condition,
			ValueCents: card.ValueCents,
		})
		if err != nil {
			return err
		}

		return storage.Pack().IncrementOpenings(ctx, pack.ID)
	})
	if err != nil {
		return OpenResult{}, s.refund(ctx, userID, pack, fmt.Errorf("%w: %w", apperrors.ErrCommitFailed, err))
	}

	s.logger.Info("Pack opened",
		"user_id", userID, "pack_id", pack.ID, "opening_id", opening.ID,
		"card_id", card.CardID, "value_cents", card.ValueCents, "rips_spent", pack.RipCost)

	return OpenResult{
		NewBalance: newBalance,
		Item:       item,
		OpeningID:  opening.ID,
	}, nil
}

// refund compensates a debit whose opening failed. A refund failure is
// the one condition that must escalate: currency already left the ledger
// and nothing was delivered for it.
func (s *Service) refund(ctx context.Context, userID uuid.UUID, pack models.Pack, cause error) error {
	_, err := s.ledger.Credit(ctx, userID, pack.RipCost, models.ReasonRefund, map[string]any{
		"pack_id": pack.ID.String(),
		"cause":   cause.Error(),
	})
	if err != nil {
		s.logger.Error("ALERT: refund after failed opening did not commit, currency is stuck",
			"user_id", userID, "pack_id", pack.ID, "amount", pack.RipCost,
			"cause", cause, "refund_error", err)
		return fmt.Errorf("%w: refund of %d rips for user %s failed: %w",
			apperrors.ErrInconsistency, pack.RipCost, userID, err)
	}

	s.logger.Warn("Opening failed after debit, rips refunded",
		"user_id", userID, "pack_id", pack.ID, "amount", pack.RipCost, "cause", cause)
	return cause
}

// PackSummary is one storefront row
type PackSummary struct {
	Pack     models.Pack
	TopCards []models.PoolEntry
}

// ListActive returns active packs with their top cards by value
func (s *Service) ListActive(ctx context.Context) ([]PackSummary, error) {
	packs, err := s.storage.Pack().ListActive(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]PackSummary, 0, len(packs))
	for _, p := range packs {
		top, err := s.storage.Pack().TopPool(ctx, p.ID, topCardsPerPack)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, PackSummary{Pack: p, TopCards: top})
	}

	return summaries, nil
}

// Detail is the full pack page: pool with probabilities and value spread
type Detail struct {
	Pack         models.Pack
	Cards        []draw.Probability
	TopCards     []models.PoolEntry
	Summary      draw.Summary
	SellbackRate decimal.Decimal
}

// GetDetail loads one active pack with per-card probabilities, floor/EV/
// ceiling and the configured sellback rate. The pool is read once; the
// probabilities and summary both come from that snapshot.
func (s *Service) GetDetail(ctx context.Context, packID uuid.UUID) (Detail, error) {
	pack, err := s.storage.Pack().GetPack(ctx, packID)
	if err != nil {
		return Detail{}, err
	}
	if !pack.Active() {
		return Detail{}, apperrors.ErrPackNotFound
	}

	pool, err := s.storage.Pack().GetPool(ctx, packID)
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Pack: pack, SellbackRate: DefaultSellbackRate}

	if rate, err := s.SellbackRate(ctx); err == nil {
		detail.SellbackRate = rate
	}

	if len(pool) > 0 {
		detail.Cards, err = s.engine.Probabilities(pool)
		if err != nil {
			return Detail{}, err
		}

		detail.Summary, err = s.engine.Summarize(pool)
		if err != nil {
			return Detail{}, err
		}

		detail.TopCards = topByValue(pool, topCardsPerPack)
	}

	return detail, nil
}

// SellbackRate reads the configured rate, falling back to the default
// for missing or malformed values
func (s *Service) SellbackRate(ctx context.Context) (decimal.Decimal, error) {
	raw, err := s.storage.Config().GetValue(ctx, "sellback_rate")
	if err != nil {
		return DefaultSellbackRate, err
	}
	if raw == "" {
		return DefaultSellbackRate, nil
	}

	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return DefaultSellbackRate, nil
	}

	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return DefaultSellbackRate, nil
	}

	return rate, nil
}

func topByValue(pool []models.PoolEntry, limit int) []models.PoolEntry {
	top := make([]models.PoolEntry, len(pool))
	copy(top, pool)

	// Insertion sort is fine for pool-sized slices
	for i := 1; i < len(top); i++ {
		for j := i; j > 0 && top[j].ValueCents > top[j-1].ValueCents; j-- {
			top[j], top[j-1] = top[j-1], top[j]
		}
	}

	if len(top) > limit {
		top = top[:limit]
	}
	return top
}
