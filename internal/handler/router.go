// Package handler is the HTTP surface: conversation and message routes, the
// websocket upgrade, health and metrics.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal"
	"github.com/facenoel/chatter/internal/auth"
	"github.com/facenoel/chatter/internal/config"
	ratelimiter "github.com/facenoel/chatter/internal/rate_limiter"
	"github.com/facenoel/chatter/internal/realtime"
	ws "github.com/facenoel/chatter/internal/websocket"
)

type Deps struct {
	Config   *config.Config
	Service  *realtime.Service
	Hub      *ws.Hub
	Profiles *auth.ProfileResolver
	Limiter  *ratelimiter.IPRateLimiter
	Checks   map[string]Check
	Logger   zerolog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(internal.Metrics)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(internal.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", ServeHealth(d.Checks))

	authenticate := internal.Authenticate(d.Config.JWTSecret, d.Config.JWTIssuer, d.Profiles, d.Logger)

	// The websocket upgrade is long-lived, so it skips the HTTP rate limit.
	r.With(authenticate).Get("/ws", ServeWs(d.Hub, d.Service, d.Config, d.Logger))

	r.Route("/api", func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Middleware)
		}
		r.Use(authenticate)
		r.Use(chimw.Timeout(15 * time.Second))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", ServeOpenConversation(d.Service, d.Logger))
			r.Get("/", ServeInbox(d.Service, d.Logger))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ServeConversation(d.Service, d.Logger))
				r.Post("/read", ServeMarkRead(d.Service, d.Logger))
				r.Put("/theme", ServeSetTheme(d.Service, d.Logger))
				r.Put("/quick-reaction", ServeSetQuickReaction(d.Service, d.Logger))
				r.Put("/nickname", ServeSetNickname(d.Service, d.Logger))

				r.Get("/messages", ServeMessages(d.Service, d.Logger))
				r.Post("/messages", ServeSendMessage(d.Service, d.Logger))
				r.Delete("/messages/{messageId}", ServeRecallMessage(d.Service, d.Logger))
				r.Put("/messages/{messageId}/react", ServeReactMessage(d.Service, d.Logger))
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	return r
}
