package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"escrow/internal/http/handlers"
	"escrow/internal/metrics"
	"escrow/internal/middleware"
)

// Options carries router inputs that do not belong on App.
type Options struct {
	// CountryLookup resolves client countries for locale detection. Nil
	// disables the IP lookup.
	CountryLookup middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		metrics.InstrumentHandler,
		middleware.CORS(cfg.CORSOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)
	r.NotFound(app.NotFound)
	r.MethodNotAllowed(app.MethodNotAllowed)

	r.Handle("/metrics", metrics.Handler())

	if cfg.IsDevelopment() {
		app.Logger.Warn().
			Str("app_env", cfg.AppEnv).
			Msg("development routes mounted: /v1/auth/dev-token and /v1/accounts/{address}/airdrop are unauthenticated")
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMin))
			auth := middleware.AuthJWT(cfg.JWTSecret)

			r.Get("/program", app.ProgramGet)
			r.With(auth).Post("/program/initialize", app.ProgramInitialize)
			r.Get("/stats", app.StatsSummary)
			r.Get("/events", app.Events)

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/counter", app.AddressCounter)
				r.Get("/campaign", app.AddressCampaign)
				r.Get("/milestone", app.AddressMilestone)
				r.Get("/contribution", app.AddressContribution)
				r.Get("/vault", app.AddressVault)
			})

			r.Route("/campaigns", func(r chi.Router) {
				r.Get("/", app.CampaignsList)
				r.With(auth).Post("/", app.CampaignsCreate)

				r.Route("/{address}", func(r chi.Router) {
					r.Get("/", app.CampaignsGet)
					r.Get("/milestones", app.MilestonesList)
					r.Get("/contributions", app.ContributionsList)
					r.Get("/contributions/{contributor}", app.ContributionGet)
					r.Get("/events", app.CampaignEvents)

					r.Group(func(r chi.Router) {
						r.Use(auth)
						r.Post("/fund", app.CampaignFund)
						r.Post("/withdraw", app.CampaignWithdraw)
						r.Post("/close", app.CampaignClose)
						r.Post("/refund", app.CampaignRefund)
						r.Post("/milestones", app.MilestonesAdd)
						r.Post("/milestones/{index}/complete", app.MilestoneComplete)
					})
				})
			})

			r.Route("/accounts/{address}", func(r chi.Router) {
				r.Get("/balance", app.AccountBalance)
				if cfg.IsDevelopment() {
					r.Post("/airdrop", app.AccountAirdrop)
				}
			})

			if cfg.IsDevelopment() {
				r.Post("/auth/dev-token", app.AuthDevToken)
			}
		})
	})

	return r
}
