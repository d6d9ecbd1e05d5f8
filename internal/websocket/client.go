package websocket

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/facenoel/chatter/internal/model"
)

const (
	sendQueueSize = 256
	writeTimeout  = 10 * time.Second
	pingInterval  = 30 * time.Second
)

type Client struct {
	ID     string
	UserID uuid.UUID

	conn       *websocket.Conn
	send       chan model.Frame
	messageLim *rate.Limiter
	gameLim    *rate.Limiter
	logger     zerolog.Logger

	// session is guarded by the owning Hub's lock.
	session model.ConnectionSession
}

// NewClient wraps an accepted connection for the authenticated userID.
func NewClient(conn *websocket.Conn, userID uuid.UUID, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
		send:   make(chan model.Frame, sendQueueSize),
		logger: logger.With().Str("conn_id", id).Str("user_id", userID.String()).Logger(),
	}
}

func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	c.messageLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

func (c *Client) SetGameLimiter(requests int, window time.Duration) {
	c.gameLim = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// Reply queues a frame for this connection only.
func (c *Client) Reply(f model.Frame) {
	select {
	case c.send <- f:
	default:
		c.logger.Warn().Str("event", f.Event).Msg("reply dropped - queue full")
	}
}

// allow charges the event against the limiter of its class.
func (c *Client) allow(gameEvent bool) bool {
	lim := c.messageLim
	if gameEvent {
		lim = c.gameLim
	}
	return lim == nil || lim.Allow()
}

// WriteMessage drains the outbound queue onto the socket and keeps the
// connection alive with pings. It returns when the queue is closed or ctx is done.
func (c *Client) WriteMessage(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			// We don't want to continue processing when the queue has already been closed.
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "connection closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, frame)
			cancel()
			if err != nil {
				c.logger.Warn().Err(err).Str("event", frame.Event).Msg("failed to write frame")
				c.conn.CloseNow()
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Debug().Err(err).Msg("ping failed")
				c.conn.CloseNow()
				return
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}
