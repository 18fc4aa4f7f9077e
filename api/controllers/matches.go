package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/api/middleware"
	"github.com/humanpalette/palette-backend/api/responses"
	matchsvc "github.com/humanpalette/palette-backend/internal/matches"
	"github.com/humanpalette/palette-backend/pkg/db/models"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

type matchDecisionFunc func(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error)

// MatchAccept records the artist's acceptance and refunds the collector's
// commitment hold.
func MatchAccept(svc matchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	var decide matchDecisionFunc
	if svc != nil {
		decide = svc.Accept
	}
	return matchDecision(decide, logg)
}

// MatchDecline records the artist's decline and refunds the collector's
// commitment hold.
func MatchDecline(svc matchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	var decide matchDecisionFunc
	if svc != nil {
		decide = svc.Decline
	}
	return matchDecision(decide, logg)
}

func matchDecision(decide matchDecisionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if decide == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "match service unavailable"))
			return
		}

		artistID := middleware.ProfileIDFromContext(r.Context())
		if artistID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "profile context missing"))
			return
		}

		matchID, err := parseMatchID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		match, err := decide(r.Context(), matchID, artistID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newMatchResponse(match))
	}
}

// MatchGet returns a match visible to either of its participants.
func MatchGet(svc matchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "match service unavailable"))
			return
		}

		profileID := middleware.ProfileIDFromContext(r.Context())
		if profileID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "profile context missing"))
			return
		}

		matchID, err := parseMatchID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		match, err := svc.GetForParticipant(r.Context(), matchID, profileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newMatchResponse(match))
	}
}

func parseMatchID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "matchId")
	matchID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid match id")
	}
	return matchID, nil
}
