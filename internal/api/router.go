package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds what NewRouter mounts.
type RouterConfig struct {
	Reader  Reader
	Watcher WatcherSource // optional
	Events  http.Handler  // optional SSE endpoint, mounted at GET /api/events

	AuthEnabled bool
	Token       string
	Logger      *slog.Logger
}

// NewRouter builds the full HTTP handler: unauthenticated health checks
// plus the /api routes behind AuthMiddleware.
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(cfg.Reader, cfg.Watcher, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

		r.Get("/stats", h.Stats)
		r.Get("/duplicates", h.Duplicates)
		r.Get("/watcher", h.Watcher)
		r.Get("/tags/{tag}/notes", h.NotesWithTag)
		r.Get("/notes/*", h.GetNote)
		r.Get("/backlinks/*", h.Backlinks)

		if cfg.Events != nil {
			r.Get("/events", cfg.Events.ServeHTTP)
		}
	})

	return r
}
