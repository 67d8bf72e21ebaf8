package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/XI0X-Dev/wan-animate-airtable/internal/http/handlers"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/infra"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/middleware"
)

func NewRouter(app *handlers.App, logger infra.Logger, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	if len(allowedOrigins) > 0 {
		r.Use(middleware.CORS(allowedOrigins))
	}

	// Liveness
	r.Get("/healthz", app.Health)

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/animate", app.Animate)
	})

	return r
}
