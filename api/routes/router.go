package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/humanpalette/palette-backend/api/controllers"
	webhookcontrollers "github.com/humanpalette/palette-backend/api/controllers/webhooks"
	"github.com/humanpalette/palette-backend/api/middleware"
	commitmentsvc "github.com/humanpalette/palette-backend/internal/commitments"
	matchsvc "github.com/humanpalette/palette-backend/internal/matches"
	purchasesvc "github.com/humanpalette/palette-backend/internal/purchases"
	stripewebhook "github.com/humanpalette/palette-backend/internal/webhooks/stripe"
	"github.com/humanpalette/palette-backend/pkg/config"
	"github.com/humanpalette/palette-backend/pkg/enums"
	"github.com/humanpalette/palette-backend/pkg/logger"
	"github.com/humanpalette/palette-backend/pkg/redis"
	"github.com/humanpalette/palette-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	healthDeps map[string]controllers.Pinger,
	redisClient *redis.Client,
	matchService matchsvc.Service,
	commitmentService commitmentsvc.Service,
	purchaseService purchasesvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	ghostSweeper controllers.GhostSweeper,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	commitmentPolicy := middleware.NewRateLimitPolicy("commitment", cfg.RateLimit)
	purchasePolicy := middleware.NewRateLimitPolicy("purchase", cfg.RateLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, healthDeps))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.ProfileRoleCollector), logg))
			r.With(middleware.RateLimit(commitmentPolicy, redisClient, logg)).
				Post("/commitments", controllers.CommitmentCreate(commitmentService, logg))
			r.With(middleware.RateLimit(purchasePolicy, redisClient, logg)).
				Post("/purchases", controllers.PurchaseCreate(purchaseService, logg))
		})

		r.Route("/matches/{matchId}", func(r chi.Router) {
			r.Get("/", controllers.MatchGet(matchService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.ProfileRoleArtist), logg))
				r.Post("/accept", controllers.MatchAccept(matchService, logg))
				r.Post("/decline", controllers.MatchDecline(matchService, logg))
			})
		})
	})

	// The cron worker owns sweeps in production. The manual trigger is only
	// mounted in non-prod environments for operators reproducing ghost flows.
	if !cfg.App.IsProd() {
		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Post("/sweeps/ghost", controllers.GhostSweepTrigger(ghostSweeper, logg))
		})
	}

	return r
}
