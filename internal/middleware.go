package internal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/auth"
	"github.com/facenoel/chatter/internal/metrics"
	"github.com/facenoel/chatter/internal/store"
)

// Authenticate validates the caller's bearer token and appends the user ID
// and display profile to the request context. The same middleware guards
// the REST routes and the websocket upgrade.
func Authenticate(secret, issuer string, profiles *auth.ProfileResolver, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r)
			if err != nil {
				unauthorized(w, "missing or malformed bearer token")
				return
			}

			userID, err := auth.ValidateJWT(token, secret, issuer)
			if err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected token")
				unauthorized(w, "invalid token")
				return
			}

			ctx := auth.WithUser(r.Context(), userID)
			if profiles != nil {
				p, err := profiles.Resolve(ctx, userID)
				switch {
				case errors.Is(err, store.ErrNotFound):
					unauthorized(w, "unknown user")
					return
				case err != nil:
					logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to resolve profile")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
					return
				}
				ctx = auth.WithProfile(ctx, p)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Logger returns a request logging middleware using zerolog.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Metrics records Prometheus metrics per route pattern. The wrapped writer
// still supports hijacking for the websocket upgrade.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps ids out of metric labels.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
