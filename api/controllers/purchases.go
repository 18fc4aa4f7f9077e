package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/api/middleware"
	"github.com/humanpalette/palette-backend/api/responses"
	"github.com/humanpalette/palette-backend/api/validators"
	purchasesvc "github.com/humanpalette/palette-backend/internal/purchases"
	"github.com/humanpalette/palette-backend/pkg/enums"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

// PurchaseCreate opens a purchase for an available artwork and returns the
// pending transaction with its price breakdown. Responds 201; the buyer's app
// confirms the returned client secret to move the money.
func PurchaseCreate(svc purchasesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		buyerID := middleware.ProfileIDFromContext(r.Context())
		if buyerID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "profile context missing"))
			return
		}

		var payload createPurchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPurchaseResponse(result))
	}
}

type createPurchaseRequest struct {
	ArtworkID string `json:"artwork_id" validate:"required,uuid"`
	MatchID   string `json:"match_id" validate:"omitempty,uuid"`
	UseType   string `json:"use_type" validate:"required,oneof=personal display commercial"`
}

func (p createPurchaseRequest) toInput(buyerID uuid.UUID) (purchasesvc.CreatePurchaseInput, error) {
	artworkID, err := uuid.Parse(p.ArtworkID)
	if err != nil {
		return purchasesvc.CreatePurchaseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid artwork id")
	}

	var matchID *uuid.UUID
	if p.MatchID != "" {
		parsed, err := uuid.Parse(p.MatchID)
		if err != nil {
			return purchasesvc.CreatePurchaseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid match id")
		}
		matchID = &parsed
	}

	useType, err := enums.ParseUseType(p.UseType)
	if err != nil {
		return purchasesvc.CreatePurchaseInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid use type")
	}

	return purchasesvc.CreatePurchaseInput{
		BuyerID:   buyerID,
		ArtworkID: artworkID,
		MatchID:   matchID,
		UseType:   useType,
	}, nil
}

type purchaseResponse struct {
	TransactionID uuid.UUID              `json:"transaction_id"`
	ArtworkID     uuid.UUID              `json:"artwork_id"`
	ArtistID      uuid.UUID              `json:"artist_id"`
	UseType       string                 `json:"use_type"`
	Status        string                 `json:"status"`
	Quote         purchasesvc.PriceQuote `json:"quote"`
	ClientSecret  string                 `json:"client_secret"`
	CreatedAt     time.Time              `json:"created_at"`
}

func newPurchaseResponse(result *purchasesvc.CreatePurchaseResult) purchaseResponse {
	return purchaseResponse{
		TransactionID: result.Transaction.ID,
		ArtworkID:     result.Transaction.ArtworkID,
		ArtistID:      result.Transaction.ArtistID,
		UseType:       string(result.Transaction.UseType),
		Status:        string(result.Transaction.Status),
		Quote:         result.Quote,
		ClientSecret:  result.ClientSecret,
		CreatedAt:     result.Transaction.CreatedAt,
	}
}
