package middleware

import (
	"net/http"
	"strings"

	"github.com/humanpalette/palette-backend/api/responses"
	pkgauth "github.com/humanpalette/palette-backend/pkg/auth"
	"github.com/humanpalette/palette-backend/pkg/config"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// authenticated profile.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role"))
				return
			}

			ctx := WithProfile(r.Context(), claims.ProfileID, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"profile_id":   claims.ProfileID.String(),
					"profile_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose profile role differs. Used
// to keep collector-only surfaces (commitments, purchases) off artist tokens
// and vice versa.
func RequireRole(role string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if string(RoleFromContext(r.Context())) != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
