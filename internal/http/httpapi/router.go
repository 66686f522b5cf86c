package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"thealttext/internal/http/handlers"
	"thealttext/internal/middleware"
	"thealttext/internal/providers/vision"
)

// NewRouter assembles the HTTP surface. lookup may be nil when no GeoIP
// database is configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS([]string{app.Config.SiteReferer}),
		middleware.Language(app.Config.DefaultLanguage, vision.SupportedLanguages(), lookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.Auth(app.Config.JWTSecret, app.Keys),
			middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
		)

		r.Post("/v1/images/analyze", app.Generate)

		r.Route("/v1/bulk", func(r chi.Router) {
			r.Post("/", app.BulkSubmit)
			r.Get("/{job_id}", app.BulkStatus)
			r.Delete("/{job_id}", app.BulkCancel)
		})

		r.Post("/v1/wcag/check", app.WCAGCheck)
		r.Post("/v1/scan", app.Scan)

		r.Route("/v1/webhooks", func(r chi.Router) {
			r.Post("/", app.WebhooksCreate)
			r.Get("/", app.WebhooksList)
			r.Get("/events", app.WebhookEventTypes)
			r.Delete("/{id}", app.WebhooksDelete)
			r.Post("/{id}/test", app.WebhooksTest)
			r.Get("/{id}/failures", app.WebhooksFailures)
		})

		r.Route("/v1/keys", func(r chi.Router) {
			r.Post("/", app.KeysCreate)
			r.Delete("/{id}", app.KeysRevoke)
		})

		r.Get("/v1/usage", app.Usage)
	})

	return r
}
