// Package websocket is the session registry and the socket transport.
package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/metrics"
	"github.com/facenoel/chatter/internal/model"
)

var ErrUnknownConnection = errors.New("websocket: unknown connection")

// Hub tracks every live connection on this process, indexed by connection
// id, by joined identity and by game room. It delivers bus envelopes to the
// connections they target.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	users   map[uuid.UUID]map[string]*Client
	rooms   map[string]map[string]*Client
	logger  zerolog.Logger
}

// NewHub returns a new instance of Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		users:   make(map[uuid.UUID]map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// Register adds a connection that has not joined yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.session = model.ConnectionSession{ConnID: c.ID}
	h.clients[c.ID] = c
	metrics.ConnectionsActive.Inc()
}

// Unregister removes the connection from every index, closes its outbound
// queue and returns its final session.
func (h *Hub) Unregister(c *Client) (model.ConnectionSession, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return model.ConnectionSession{}, false
	}
	sess := c.session

	delete(h.clients, c.ID)
	if sess.Joined {
		removeFrom(h.users, sess.Identity, c.ID)
	}
	if sess.Room != "" {
		removeFrom(h.rooms, sess.Room, c.ID)
	}
	close(c.send)
	metrics.ConnectionsActive.Dec()
	return sess, true
}

func (h *Hub) Bind(connID string, identity uuid.UUID) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return false, ErrUnknownConnection
	}
	if c.session.Joined {
		return false, nil
	}

	c.session.Identity = identity
	c.session.Joined = true
	addTo(h.users, identity, c)
	return true, nil
}

func (h *Hub) Session(connID string) (model.ConnectionSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return model.ConnectionSession{}, false
	}
	return c.session, true
}

func (h *Hub) EnterRoom(connID, roomID string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return "", ErrUnknownConnection
	}

	previous := c.session.Room
	if previous == roomID {
		return previous, nil
	}
	if previous != "" {
		removeFrom(h.rooms, previous, connID)
	}
	c.session.Room = roomID
	addTo(h.rooms, roomID, c)
	return previous, nil
}

func (h *Hub) ExitRoom(connID, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok || c.session.Room != roomID {
		return false
	}
	c.session.Room = ""
	removeFrom(h.rooms, roomID, connID)
	return true
}

// Connections returns how many live connections identity has on this process.
func (h *Hub) Connections(identity uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[identity])
}

// Run delivers envelopes until ctx is done or the channel closes.
func (h *Hub) Run(ctx context.Context, envelopes <-chan model.Envelope) {
	for {
		select {
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			h.Deliver(env)

		case <-ctx.Done():
			h.logger.Info().Err(ctx.Err()).Msg("hub stopped")
			return
		}
	}
}

// Deliver queues env's frame on every local connection it targets. A full
// queue drops the frame for that connection only.
func (h *Hub) Deliver(env model.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	frame := env.Frame()
	for _, c := range h.targets(env) {
		select {
		case c.send <- frame:
		default:
			metrics.DroppedFrames.Inc()
			h.logger.Warn().
				Str("conn_id", c.ID).
				Str("event", env.Event).
				Msg("skipping frame - queue full or client slow")
		}
	}
}

func (h *Hub) targets(env model.Envelope) []*Client {
	var out []*Client
	add := func(c *Client) {
		if c.ID != env.ExcludeConn {
			out = append(out, c)
		}
	}

	switch {
	case env.Broadcast:
		for _, c := range h.clients {
			if c.session.Joined {
				add(c)
			}
		}
	case env.Room != "":
		for _, c := range h.rooms[env.Room] {
			add(c)
		}
	default:
		for _, id := range env.Users {
			for _, c := range h.users[id] {
				add(c)
			}
		}
	}
	return out
}

func addTo[K comparable](index map[K]map[string]*Client, key K, c *Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]*Client)
		index[key] = set
	}
	set[c.ID] = c
}

func removeFrom[K comparable](index map[K]map[string]*Client, key K, connID string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(index, key)
	}
}
