package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/api/middleware"
	"github.com/humanpalette/palette-backend/api/responses"
	"github.com/humanpalette/palette-backend/api/validators"
	commitmentsvc "github.com/humanpalette/palette-backend/internal/commitments"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

// CommitmentCreate opens a match by placing the collector's commitment fee
// hold. Responds 201 with the pending match and the client secret the app
// confirms against.
func CommitmentCreate(svc commitmentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commitment service unavailable"))
			return
		}

		collectorID := middleware.ProfileIDFromContext(r.Context())
		if collectorID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "profile context missing"))
			return
		}

		var payload createCommitmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		artworkID, err := uuid.Parse(payload.ArtworkID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid artwork id"))
			return
		}

		result, err := svc.Create(r.Context(), commitmentsvc.CreateCommitmentInput{
			CollectorID: collectorID,
			ArtworkID:   artworkID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCommitmentResponse(result))
	}
}

type createCommitmentRequest struct {
	ArtworkID string `json:"artwork_id" validate:"required,uuid"`
}

type commitmentResponse struct {
	Match        matchResponse `json:"match"`
	FeeCents     int64         `json:"fee_cents"`
	FeeStatus    string        `json:"fee_status"`
	ClientSecret string        `json:"client_secret"`
}

type matchResponse struct {
	ID          uuid.UUID  `json:"id"`
	ArtistID    uuid.UUID  `json:"artist_id"`
	CollectorID uuid.UUID  `json:"collector_id"`
	ArtworkID   uuid.UUID  `json:"artwork_id"`
	Status      string     `json:"status"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	GhostedAt   *time.Time `json:"ghosted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newMatchResponse(match *models.Match) matchResponse {
	return matchResponse{
		ID:          match.ID,
		ArtistID:    match.ArtistID,
		CollectorID: match.CollectorID,
		ArtworkID:   match.ArtworkID,
		Status:      string(match.Status),
		DecidedAt:   match.DecidedAt,
		GhostedAt:   match.GhostedAt,
		CreatedAt:   match.CreatedAt,
	}
}

func newCommitmentResponse(result *commitmentsvc.CreateCommitmentResult) commitmentResponse {
	return commitmentResponse{
		Match:        newMatchResponse(result.Match),
		FeeCents:     result.Fee.AmountCents,
		FeeStatus:    string(result.Fee.Status),
		ClientSecret: result.ClientSecret,
	}
}
