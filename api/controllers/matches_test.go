package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/humanpalette/palette-backend/pkg/db/models"
	"github.com/humanpalette/palette-backend/pkg/enums"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
)

type fakeMatchService struct {
	accepted  []uuid.UUID
	declined  []uuid.UUID
	match     *models.Match
	err       error
	lastActor uuid.UUID
}

func (f *fakeMatchService) Accept(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error) {
	f.accepted = append(f.accepted, matchID)
	f.lastActor = artistID
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}

func (f *fakeMatchService) Decline(ctx context.Context, matchID, artistID uuid.UUID) (*models.Match, error) {
	f.declined = append(f.declined, matchID)
	f.lastActor = artistID
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}

func (f *fakeMatchService) GetForParticipant(ctx context.Context, matchID, profileID uuid.UUID) (*models.Match, error) {
	f.lastActor = profileID
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}

func matchRouter(svc *fakeMatchService) http.Handler {
	r := chi.NewRouter()
	r.Get("/matches/{matchId}", MatchGet(svc, nil))
	r.Post("/matches/{matchId}/accept", MatchAccept(svc, nil))
	r.Post("/matches/{matchId}/decline", MatchDecline(svc, nil))
	return r
}

func TestMatchAccept_ResolvesThroughService(t *testing.T) {
	matchID := uuid.New()
	artistID := uuid.New()
	svc := &fakeMatchService{
		match: &models.Match{
			ID:       matchID,
			ArtistID: artistID,
			Status:   enums.MatchStatusActive,
		},
	}
	router := matchRouter(svc)

	req := authenticatedRequest(t, http.MethodPost, fmt.Sprintf("/matches/%s/accept", matchID), nil, artistID, enums.ProfileRoleArtist)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.accepted) != 1 || svc.accepted[0] != matchID {
		t.Fatalf("expected accept call for %s, got %v", matchID, svc.accepted)
	}
	if svc.lastActor != artistID {
		t.Fatalf("expected artist id from context, got %s", svc.lastActor)
	}

	var envelope struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != "active" {
		t.Fatalf("expected active match, got %q", envelope.Data.Status)
	}
}

func TestMatchDecline_ResolvesThroughService(t *testing.T) {
	matchID := uuid.New()
	artistID := uuid.New()
	svc := &fakeMatchService{
		match: &models.Match{
			ID:       matchID,
			ArtistID: artistID,
			Status:   enums.MatchStatusDeclined,
		},
	}
	router := matchRouter(svc)

	req := authenticatedRequest(t, http.MethodPost, fmt.Sprintf("/matches/%s/decline", matchID), nil, artistID, enums.ProfileRoleArtist)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.declined) != 1 || svc.declined[0] != matchID {
		t.Fatalf("expected decline call for %s, got %v", matchID, svc.declined)
	}
}

func TestMatchDecision_RejectsMalformedID(t *testing.T) {
	svc := &fakeMatchService{}
	router := matchRouter(svc)

	req := authenticatedRequest(t, http.MethodPost, "/matches/not-a-uuid/accept", nil, uuid.New(), enums.ProfileRoleArtist)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.accepted) != 0 {
		t.Fatalf("service should not see malformed ids")
	}
}

func TestMatchGet_PropagatesStateErrors(t *testing.T) {
	svc := &fakeMatchService{err: pkgerrors.New(pkgerrors.CodeNotFound, "match not found")}
	router := matchRouter(svc)

	req := authenticatedRequest(t, http.MethodGet, fmt.Sprintf("/matches/%s", uuid.New()), nil, uuid.New(), enums.ProfileRoleCollector)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}
