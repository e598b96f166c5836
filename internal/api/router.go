package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// Rate limiting is applied globally: 60 requests per minute per IP. Every
// route sees the visitor cookie so per-browser state keys consistently.
func NewRouter(handlers *Handlers, shell *Shell, redisPing, dbPing Pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))
	r.Use(VisitorID)

	r.Get("/api/weather", handlers.GetWeather)
	r.Get("/config", handlers.GetConfig)

	r.Get("/api/v1/dashboard", handlers.GetDashboard)
	r.Get("/api/v1/recent", handlers.ListRecent)
	r.Get("/api/v1/favorites", handlers.ListFavorites)
	r.Post("/api/v1/favorites", handlers.AddFavorite)
	r.Delete("/api/v1/favorites", handlers.RemoveFavorite)
	r.Get("/api/v1/history/top", handlers.TopSearches)

	r.Get("/api/v1/health", HealthHandlerFunc(redisPing, dbPing, log))

	r.Get("/", shell.ServeHTTP)
	r.Get("/static/*", shell.ServeHTTP)
	r.Get("/service-worker.js", shell.ServeHTTP)

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
