package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/humanpalette/palette-backend/api/responses"
	"github.com/humanpalette/palette-backend/pkg/config"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is the health-check surface shared by the db, redis, and bigquery
// clients.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Palette-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every hard dependency. Nil pingers are skipped so
// deployments without the optional sinks still report ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Palette-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
			}
		}

		if len(checks) > 0 {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
