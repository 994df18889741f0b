package handlers

import (
	"net/http"
	"time"

	"github.com/justtherip/packvault/internal/handlers/render"
	"github.com/justtherip/packvault/internal/handlers/userctx"
	"github.com/justtherip/packvault/internal/logger"
)

func handleBalance(ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		Balance int64 `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		balance, err := ledgerService.GetBalance(r.Context(), identity.UserID)

		switch err {
		case nil:
			render.JSON(w, response{Balance: balance})
		default:
			l.Error("Failed to get balance", "user_id", identity.UserID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleBalanceHistory(ledgerService ledgerService, l logger.Logger) http.Handler {
	type entry struct {
		Amount       int64          `json:"amount"`
		BalanceAfter int64          `json:"balance_after"`
		Reason       string         `json:"reason"`
		Metadata     map[string]any `json:"metadata,omitempty"`
		CreatedAt    time.Time      `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		entries, err := ledgerService.History(r.Context(), identity.UserID, 0)

		switch err {
		case nil:
			history := make([]entry, 0, len(entries))
			for _, e := range entries {
				history = append(history, entry{
					Amount:       e.Amount,
					BalanceAfter: e.BalanceAfter,
					Reason:       e.Reason,
					Metadata:     e.Metadata,
					CreatedAt:    e.CreatedAt,
				})
			}
			render.JSON(w, history)
		default:
			l.Error("Failed to get balance history", "user_id", identity.UserID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
