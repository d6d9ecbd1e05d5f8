package handler

import (
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/auth"
	"github.com/facenoel/chatter/internal/config"
	ws "github.com/facenoel/chatter/internal/websocket"
)

// ServeWs handles the client's websocket connection upgrade.
func ServeWs(h *ws.Hub, d ws.Dispatcher, cfg *config.Config, logger zerolog.Logger) http.HandlerFunc {
	opts := acceptOptions(cfg.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to upgrade connection")
			return
		}

		c := ws.NewClient(conn, userID, logger)
		c.SetMessageLimiter(cfg.WSMessageRate, cfg.WSMessageWindow)
		c.SetGameLimiter(cfg.WSGameRate, cfg.WSGameWindow)

		// The connection stays unjoined until it sends a join event.
		h.Register(c)

		l := logger.Debug().Str("conn_id", c.ID).Str("user_id", userID.String())
		if p, ok := auth.ProfileFromContext(ctx); ok {
			l = l.Str("display_name", p.DisplayName)
		}
		l.Msg("upgraded connection")

		// We block on c.ReadMessage() because the request context will be canceled as soon
		// we return from the ServeWs() handler.
		go c.WriteMessage(ctx)
		c.ReadMessage(ctx, h, d)
	}
}

// acceptOptions turns the CORS origin list into websocket origin patterns.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	var patterns []string
	for _, o := range origins {
		if o == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}
