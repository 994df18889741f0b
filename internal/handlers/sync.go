package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/justtherip/packvault/internal/handlers/render"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
)

const cronSecretHeader = "X-Cron-Secret"

// handleSyncRun triggers a catalog sync manually. Guarded by a shared
// secret instead of user auth: it is called by cron infrastructure, not
// browsers. Disabled entirely when no secret is configured.
func handleSyncRun(syncService syncService, cronSecret string, l logger.Logger) http.Handler {
	type response struct {
		CategoriesProcessed int                `json:"categories_processed"`
		GroupsProcessed     int                `json:"groups_processed"`
		TotalItems          int                `json:"total_items"`
		ProductsUpserted    int                `json:"products_upserted"`
		PricesUpserted      int                `json:"prices_upserted"`
		Errors              []models.SyncError `json:"errors"`
		DurationMS          int64              `json:"duration_ms"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cronSecret == "" {
			render.ServiceError(w, "Manual sync is not enabled", http.StatusNotFound)
			return
		}

		provided := r.Header.Get(cronSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(cronSecret)) != 1 {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		stats, err := syncService.Run(r.Context())
		if err != nil {
			l.Error("Manual catalog sync failed", "error", err)
			render.ServiceError(w, "Catalog sync failed", http.StatusBadGateway)
			return
		}

		render.JSON(w, response{
			CategoriesProcessed: stats.CategoriesProcessed,
			GroupsProcessed:     stats.GroupsProcessed,
			TotalItems:          stats.TotalItems,
			ProductsUpserted:    stats.ProductsUpserted,
			PricesUpserted:      stats.PricesUpserted,
			Errors:              stats.Errors,
			DurationMS:          stats.DurationMS,
		})
	})
}
