package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/metrics"
	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/realtime"
)

// Dispatcher runs inbound events and connection teardown. realtime.Service implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, connID string, identity uuid.UUID, frame model.Frame) error
	Leave(ctx context.Context, sess model.ConnectionSession)
}

// ReadMessage reads frames from the socket and runs them one at a time, in
// arrival order. A failed event is reported to this connection only. On
// return the client is unregistered and its session torn down.
func (c *Client) ReadMessage(ctx context.Context, h *Hub, d Dispatcher) {
	defer func() {
		if sess, ok := h.Unregister(c); ok {
			d.Leave(context.WithoutCancel(ctx), sess)
		}
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				c.logger.Warn().Err(err).Msg("read failed")
			}
			return
		}

		// The protocol only supports text frames.
		if msgType != websocket.MessageText {
			continue
		}

		var frame model.Frame
		if err := json.Unmarshal(p, &frame); err != nil || frame.Event == "" {
			c.Reply(realtime.ErrorFrame("", fmt.Errorf("%w: malformed frame", realtime.ErrValidation)))
			continue
		}
		metrics.EventsReceived.WithLabelValues(metricEvent(frame.Event)).Inc()

		if !c.allow(realtime.IsGameEvent(frame.Event)) {
			metrics.RateLimitHits.WithLabelValues("websocket").Inc()
			c.fail(frame.Event, realtime.ErrRateLimited)
			continue
		}

		c.logger.Debug().Str("event", frame.Event).Msg("event received")
		if err := d.Dispatch(ctx, c.ID, c.UserID, frame); err != nil {
			c.fail(frame.Event, err)
		}
	}
}

func (c *Client) fail(event string, err error) {
	code := realtime.Code(err)
	metrics.EventErrors.WithLabelValues(metricEvent(event), code).Inc()
	if code == "internal" || code == "storage_failure" {
		c.logger.Error().Err(err).Str("event", event).Msg("event failed")
	} else {
		c.logger.Debug().Err(err).Str("event", event).Msg("event rejected")
	}
	c.Reply(realtime.ErrorFrame(event, err))
}

var knownEvents = map[string]struct{}{
	realtime.EventJoin: {}, realtime.EventMarkRead: {}, realtime.EventSendMessage: {},
	realtime.EventRecallMessage: {}, realtime.EventReactMessage: {}, realtime.EventSendGameInvite: {},
	realtime.EventAcceptGameInvite: {}, realtime.EventJoinGameRoom: {}, realtime.EventMakeGameMove: {},
	realtime.EventUpdateGameState: {}, realtime.EventGameOverSignal: {}, realtime.EventLeaveGameRoom: {},
	realtime.EventGameFinished: {}, realtime.EventCallInvite: {}, realtime.EventCallAccepted: {},
	realtime.EventCallRejected: {}, realtime.EventCallCancelled: {}, realtime.EventCallEnded: {},
}

// metricEvent keeps client supplied event names out of metric labels.
func metricEvent(event string) string {
	if _, ok := knownEvents[event]; ok {
		return event
	}
	return "unknown"
}
