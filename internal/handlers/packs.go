package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/handlers/render"
	"github.com/justtherip/packvault/internal/handlers/userctx"
	"github.com/justtherip/packvault/internal/logger"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/service/pack"
)

type cardResponse struct {
	CardID      string   `json:"card_id"`
	Name        string   `json:"name"`
	ImageURL    string   `json:"image_url,omitempty"`
	SetName     string   `json:"set_name,omitempty"`
	SetCode     string   `json:"set_code,omitempty"`
	Rarity      string   `json:"rarity,omitempty"`
	Foil        bool     `json:"foil"`
	Condition   string   `json:"condition,omitempty"`
	ValueCents  int64    `json:"value_cents"`
	Probability *float64 `json:"probability,omitempty"`
}

func cardFromPoolEntry(e models.PoolEntry) cardResponse {
	return cardResponse{
		CardID:     e.CardID.String(),
		Name:       e.CardName,
		ImageURL:   e.ImageURL,
		SetName:    e.SetName,
		SetCode:    e.SetCode,
		Rarity:     e.Rarity,
		Foil:       e.Foil,
		Condition:  e.Condition,
		ValueCents: e.ValueCents,
	}
}

type packResponse struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Slug          string         `json:"slug"`
	Description   string         `json:"description,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	Game          string         `json:"game"`
	RipCost       int64          `json:"rip_cost"`
	TotalOpenings int64          `json:"total_openings"`
	TopCards      []cardResponse `json:"top_cards,omitempty"`
}

func packFromModel(p models.Pack) packResponse {
	return packResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		Game:          p.GameCode,
		RipCost:       p.RipCost,
		TotalOpenings: p.TotalOpenings,
	}
}

// packIDFromPath reads the {id} path segment. Writes the error response
// itself when the id is not a uuid.
func packIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid pack id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func handleListPacks(packService packService, ledgerService ledgerService, l logger.Logger) http.Handler {
	type response struct {
		Packs   []packResponse `json:"packs"`
		Balance *int64         `json:"balance,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := userctx.FromContext(r.Context())

		summaries, err := packService.ListActive(r.Context())
		if err != nil {
			l.Error("Failed to list packs", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := response{Packs: make([]packResponse, 0, len(summaries))}
		for _, s := range summaries {
			p := packFromModel(s.Pack)
			for _, c := range s.TopCards {
				p.TopCards = append(p.TopCards, cardFromPoolEntry(c))
			}
			resp.Packs = append(resp.Packs, p)
		}

		// The storefront shows the caller's balance when authenticated
		if !identity.Anonymous() {
			balance, err := ledgerService.GetBalance(r.Context(), identity.UserID)
			if err != nil {
				l.Error("Failed to get balance for pack list", "user_id", identity.UserID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			resp.Balance = &balance
		}

		render.JSON(w, resp)
	})
}

func handleGetPack(packService packService, l logger.Logger) http.Handler {
	type response struct {
		packResponse
		Cards        []cardResponse `json:"cards"`
		FloorCents   int64          `json:"floor_cents"`
		CeilingCents int64          `json:"ceiling_cents"`
		EVCents      float64        `json:"ev_cents"`
		SellbackRate string         `json:"sellback_rate"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		packID, ok := packIDFromPath(w, r)
		if !ok {
			return
		}

		detail, err := packService.GetDetail(r.Context(), packID)

		switch {
		case err == nil:
			resp := response{
				packResponse: packFromModel(detail.Pack),
				Cards:        make([]cardResponse, 0, len(detail.Cards)),
				FloorCents:   detail.Summary.FloorCents,
				CeilingCents: detail.Summary.CeilingCents,
				EVCents:      detail.Summary.EVCents,
				SellbackRate: detail.SellbackRate.String(),
			}
			for _, c := range detail.Cards {
				card := cardFromPoolEntry(c.Entry)
				probability := c.Probability
				card.Probability = &probability
				resp.Cards = append(resp.Cards, card)
			}
			for _, c := range detail.TopCards {
				resp.TopCards = append(resp.TopCards, cardFromPoolEntry(c))
			}
			render.JSON(w, resp)
		case errors.Is(err, apperrors.ErrPackNotFound):
			render.ServiceError(w, "Pack not found", http.StatusNotFound)
		default:
			l.Error("Failed to get pack", "pack_id", packID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleOpenPack(packService packService, l logger.Logger) http.Handler {
	type response struct {
		NewBalance int64        `json:"new_balance"`
		OpeningID  string       `json:"opening_id"`
		Item       itemResponse `json:"item"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		packID, ok := packIDFromPath(w, r)
		if !ok {
			return
		}

		result, err := packService.OpenPack(r.Context(), identity.UserID, packID)

		var insufficient *pack.InsufficientFundsError
		switch {
		case err == nil:
			render.JSON(w, response{
				NewBalance: result.NewBalance,
				OpeningID:  result.OpeningID.String(),
				Item:       itemFromModel(result.Item),
			})
		case errors.As(err, &insufficient):
			render.JSONWithStatus(w, struct {
				Error    string `json:"error"`
				Message  string `json:"message"`
				Balance  int64  `json:"balance"`
				Required int64  `json:"required"`
			}{
				Error:    render.ServiceErrorType,
				Message:  "Insufficient rip balance",
				Balance:  insufficient.Balance,
				Required: insufficient.Required,
			}, http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrPackNotFound):
			render.ServiceError(w, "Pack not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrPackInactive):
			render.ServiceError(w, "Pack is not active", http.StatusConflict)
		case errors.Is(err, apperrors.ErrInconsistency):
			l.Error("Opening left an unrefunded debit", "user_id", identity.UserID, "pack_id", packID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		default:
			l.Error("Failed to open pack", "user_id", identity.UserID, "pack_id", packID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
