package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/handlers/render"
	"github.com/justtherip/packvault/internal/handlers/userctx"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/service/inventory"
)

type itemResponse struct {
	ID         string     `json:"id"`
	CardID     string     `json:"card_id"`
	Game       string     `json:"game"`
	Name       string     `json:"name"`
	ImageURL   string     `json:"image_url,omitempty"`
	SetName    string     `json:"set_name,omitempty"`
	SetCode    string     `json:"set_code,omitempty"`
	Rarity     string     `json:"rarity,omitempty"`
	Foil       bool       `json:"foil"`
	Condition  string     `json:"condition,omitempty"`
	ValueCents int64      `json:"value_cents"`
	Sold       bool       `json:"sold"`
	SoldAt     *time.Time `json:"sold_at,omitempty"`
	Shipped    bool       `json:"shipped"`
	ShippedAt  *time.Time `json:"shipped_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func itemFromModel(item models.InventoryItem) itemResponse {
	return itemResponse{
		ID:         item.ID.String(),
		CardID:     item.CardID.String(),
		Game:       item.GameCode,
		Name:       item.CardName,
		ImageURL:   item.ImageURL,
		SetName:    item.SetName,
		SetCode:    item.SetCode,
		Rarity:     item.Rarity,
		Foil:       item.Foil,
		Condition:  item.Condition,
		ValueCents: item.ValueCents,
		Sold:       item.Sold,
		SoldAt:     item.SoldAt,
		Shipped:    item.Shipped,
		ShippedAt:  item.ShippedAt,
		CreatedAt:  item.CreatedAt,
	}
}

func itemIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid item id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func handleListInventory(inventoryService inventoryService, l logger.Logger) http.Handler {
	type response struct {
		Items []itemResponse `json:"items"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		items, err := inventoryService.ListItems(r.Context(), identity.UserID)

		switch err {
		case nil:
			resp := response{Items: make([]itemResponse, 0, len(items))}
			for _, item := range items {
				resp.Items = append(resp.Items, itemFromModel(item))
			}
			render.JSON(w, resp)
		default:
			l.Error("Failed to list inventory", "user_id", identity.UserID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleSellItem(inventoryService inventoryService, l logger.Logger) http.Handler {
	type response struct {
		NewBalance   int64        `json:"new_balance"`
		CreditedRips int64        `json:"credited_rips"`
		Item         itemResponse `json:"item"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		itemID, ok := itemIDFromPath(w, r)
		if !ok {
			return
		}

		result, err := inventoryService.Sell(r.Context(), identity.UserID, itemID)

		switch {
		case err == nil:
			render.JSON(w, response{
				NewBalance:   result.NewBalance,
				CreditedRips: result.Rips,
				Item:         itemFromModel(result.Item),
			})
		case errors.Is(err, apperrors.ErrItemNotFound):
			render.ServiceError(w, "Item not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrItemSold):
			render.ServiceError(w, "Item already sold", http.StatusConflict)
		case errors.Is(err, apperrors.ErrItemShipped):
			render.ServiceError(w, "Item already shipped", http.StatusConflict)
		case errors.Is(err, apperrors.ErrShipmentActive):
			render.ServiceError(w, "Item has a shipment", http.StatusConflict)
		default:
			l.Error("Failed to sell item", "user_id", identity.UserID, "item_id", itemID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleShipItem(inventoryService inventoryService, l logger.Logger) http.Handler {
	type request struct {
		AddressID string `json:"address_id" validate:"omitempty,uuid"`
	}

	type response struct {
		ShipmentID  string `json:"shipment_id"`
		Status      string `json:"status"`
		CardTier    string `json:"card_tier"`
		AddressFull string `json:"address_full"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		itemID, ok := itemIDFromPath(w, r)
		if !ok {
			return
		}

		shipReq := inventory.ShipRequest{ItemID: itemID}

		// The body is optional: no body at all means the default address
		if r.ContentLength != 0 {
			body, err := render.BindAndValidate[request](w, r)
			if err != nil {
				return
			}
			if body.AddressID != "" {
				shipReq.AddressID = uuid.MustParse(body.AddressID)
			}
		}

		shipment, err := inventoryService.Ship(r.Context(), identity.UserID, shipReq)

		switch {
		case err == nil:
			render.JSON(w, response{
				ShipmentID:  shipment.ID.String(),
				Status:      shipment.Status,
				CardTier:    shipment.CardTier,
				AddressFull: shipment.AddressFull,
			})
		case errors.Is(err, apperrors.ErrItemNotFound):
			render.ServiceError(w, "Item not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrItemSold):
			render.ServiceError(w, "Item already sold", http.StatusConflict)
		case errors.Is(err, apperrors.ErrItemShipped):
			render.ServiceError(w, "Item already shipped", http.StatusConflict)
		case errors.Is(err, apperrors.ErrShipmentActive):
			render.ServiceError(w, "Item already has an active shipment", http.StatusConflict)
		case errors.Is(err, apperrors.ErrNoAddress):
			render.ServiceError(w, "No shipping address on file", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrAddressNotFound):
			render.ServiceError(w, "Shipping address not found", http.StatusBadRequest)
		default:
			l.Error("Failed to ship item", "user_id", identity.UserID, "item_id", itemID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
