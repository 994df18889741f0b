package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/justtherip/packvault/internal/handlers/middleware"
	"github.com/justtherip/packvault/internal/handlers/userctx"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/service/inventory"
	"github.com/justtherip/packvault/internal/service/pack"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type verifier interface {
	VerifyRequest(ctx context.Context, r *http.Request) (userctx.Identity, error)
}

func NewRouter(
	v verifier,
	packService packService,
	ledgerService ledgerService,
	inventoryService inventoryService,
	syncService syncService,
	cronSecret string,
	logger logger.Logger,
) http.Handler {
	withAuth := func(h http.Handler) http.Handler {
		return middleware.Auth(v)(h)
	}
	withOptionalAuth := func(h http.Handler) http.Handler {
		return middleware.AuthOptional(v)(h)
	}

	api := http.NewServeMux()

	api.Handle("GET /packs", withOptionalAuth(handleListPacks(packService, ledgerService, logger)))
	api.Handle("GET /packs/{id}", withOptionalAuth(handleGetPack(packService, logger)))
	api.Handle("POST /packs/{id}/open", withAuth(handleOpenPack(packService, logger)))

	api.Handle("GET /balance", withAuth(handleBalance(ledgerService, logger)))
	api.Handle("GET /balance/history", withAuth(handleBalanceHistory(ledgerService, logger)))

	api.Handle("GET /inventory", withAuth(handleListInventory(inventoryService, logger)))
	api.Handle("POST /inventory/{id}/sell", withAuth(handleSellItem(inventoryService, logger)))
	api.Handle("POST /inventory/{id}/ship", withAuth(handleShipItem(inventoryService, logger)))

	api.Handle("POST /sync/run", handleSyncRun(syncService, cronSecret, logger))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.Logger(logger),
	)

	return handler
}

type packService interface {
	// Active packs with their showcase cards
	ListActive(ctx context.Context) ([]pack.PackSummary, error)

	// Full pack page: pool, probabilities, value spread
	// Has to return apperrors.ErrPackNotFound for unknown or inactive packs
	GetDetail(ctx context.Context, packID uuid.UUID) (pack.Detail, error)

	// Open pack for user
	// Has to return apperrors.ErrInsufficientFunds (as *pack.InsufficientFundsError),
	// apperrors.ErrPackNotFound or apperrors.ErrPackInactive on business failures
	OpenPack(ctx context.Context, userID uuid.UUID, packID uuid.UUID) (pack.OpenResult, error)
}

type ledgerService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error)
}

type inventoryService interface {
	ListItems(ctx context.Context, userID uuid.UUID) ([]models.InventoryItem, error)
	Sell(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) (inventory.SellResult, error)
	Ship(ctx context.Context, userID uuid.UUID, req inventory.ShipRequest) (models.Shipment, error)
}

type syncService interface {
	Run(ctx context.Context) (models.SyncStats, error)
}
