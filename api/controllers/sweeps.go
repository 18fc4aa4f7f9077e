package controllers

import (
	"context"
	"net/http"

	"github.com/humanpalette/palette-backend/api/responses"
	"github.com/humanpalette/palette-backend/internal/cron"
	pkgerrors "github.com/humanpalette/palette-backend/pkg/errors"
	"github.com/humanpalette/palette-backend/pkg/logger"
)

// GhostSweeper runs one ghost-sweep pass and reports its counters.
type GhostSweeper interface {
	Sweep(ctx context.Context) (cron.SweepResult, error)
}

// GhostSweepTrigger runs the ghost sweep on demand. The cron worker owns the
// schedule in production; this route exists for operators in non-prod
// environments and is not registered elsewhere.
func GhostSweepTrigger(sweeper GhostSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sweeper == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweep job unavailable"))
			return
		}

		result, err := sweeper.Sweep(r.Context())
		if err != nil {
			// Partial sweeps still return their counters so the
			// operator can see how far the pass got.
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInternal, err, "ghost sweep incomplete").WithDetails(result))
			return
		}

		responses.WriteSuccess(w, result)
	}
}
