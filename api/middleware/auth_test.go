package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/humanpalette/palette-backend/pkg/auth"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/enums"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "palette-test",
	ExpirationMinutes: 60,
}

func mintTestToken(t *testing.T, profileID uuid.UUID, role enums.ProfileRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testJWTConfig, time.Now(), pkgauth.AccessTokenPayload{
		ProfileID: profileID,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthSeedsProfileContext(t *testing.T) {
	profileID := uuid.New()
	var gotID uuid.UUID
	var gotRole enums.ProfileRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = ProfileIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Auth(testJWTConfig, nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, profileID, enums.ProfileRoleArtist))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", rec.Code, rec.Body.String())
	}
	if gotID != profileID {
		t.Fatalf("expected profile id %s, got %s", profileID, gotID)
	}
	if gotRole != enums.ProfileRoleArtist {
		t.Fatalf("expected artist role, got %s", gotRole)
	}
}

func TestAuthRejectsMissingAndMalformedTokens(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without credentials")
	})
	handler := Auth(testJWTConfig, nil)(next)

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"empty bearer", "Bearer "},
		{"garbage", "Bearer not.a.jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	otherCfg := testJWTConfig
	otherCfg.Secret = "different-secret"
	token, err := pkgauth.MintAccessToken(otherCfg, time.Now(), pkgauth.AccessTokenPayload{
		ProfileID: uuid.New(),
		Role:      enums.ProfileRoleCollector,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler := Auth(testJWTConfig, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a foreign signature")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRoleGatesByProfileRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRole(string(enums.ProfileRoleCollector), nil)(next)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithProfile(req.Context(), uuid.New(), enums.ProfileRoleCollector))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected collector allowed, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithProfile(req.Context(), uuid.New(), enums.ProfileRoleArtist))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected artist forbidden, got %d", rec.Code)
	}
}
