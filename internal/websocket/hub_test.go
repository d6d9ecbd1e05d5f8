package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facenoel/chatter/internal/model"
)

func newClient(h *Hub, userID uuid.UUID) *Client {
	c := NewClient(nil, userID, zerolog.Nop())
	h.Register(c)
	return c
}

func joined(t *testing.T, h *Hub, userID uuid.UUID) *Client {
	t.Helper()
	c := newClient(h, userID)
	fresh, err := h.Bind(c.ID, userID)
	require.NoError(t, err)
	require.True(t, fresh)
	return c
}

// pending drains whatever is queued on c without blocking.
func pending(c *Client) []model.Frame {
	var out []model.Frame
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func events(frames []model.Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func TestBind(t *testing.T) {
	h := NewHub(zerolog.Nop())
	id := uuid.New()
	c := newClient(h, id)

	sess, ok := h.Session(c.ID)
	require.True(t, ok)
	assert.False(t, sess.Joined)
	assert.Equal(t, 0, h.Connections(id))

	fresh, err := h.Bind(c.ID, id)
	require.NoError(t, err)
	assert.True(t, fresh)

	// The identity is fixed once bound.
	fresh, err = h.Bind(c.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, fresh)

	sess, _ = h.Session(c.ID)
	assert.Equal(t, id, sess.Identity)
	assert.Equal(t, 1, h.Connections(id))

	_, err = h.Bind("missing", id)
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestRooms(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := joined(t, h, uuid.New())

	prev, err := h.EnterRoom(c.ID, "room_a")
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = h.EnterRoom(c.ID, "room_b")
	require.NoError(t, err)
	assert.Equal(t, "room_a", prev)

	assert.False(t, h.ExitRoom(c.ID, "room_a"))
	assert.True(t, h.ExitRoom(c.ID, "room_b"))

	sess, _ := h.Session(c.ID)
	assert.Empty(t, sess.Room)

	_, err = h.EnterRoom("missing", "room_a")
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestDeliverTargets(t *testing.T) {
	h := NewHub(zerolog.Nop())
	an, binh := uuid.New(), uuid.New()

	anPhone := joined(t, h, an)
	anLaptop := joined(t, h, an)
	binhPhone := joined(t, h, binh)
	lurker := newClient(h, uuid.New())

	_, err := h.EnterRoom(anPhone.ID, "room_caro")
	require.NoError(t, err)
	_, err = h.EnterRoom(binhPhone.ID, "room_caro")
	require.NoError(t, err)

	payload := json.RawMessage(`{"ok":true}`)

	tests := []struct {
		name string
		env  model.Envelope
		want map[*Client]bool
	}{
		{
			name: "users_reach_every_device",
			env:  model.Envelope{Event: "new_message", Payload: payload, Users: []uuid.UUID{an}},
			want: map[*Client]bool{anPhone: true, anLaptop: true},
		},
		{
			name: "room_excludes_sender",
			env:  model.Envelope{Event: "opponent_move", Payload: payload, Room: "room_caro", ExcludeConn: anPhone.ID},
			want: map[*Client]bool{binhPhone: true},
		},
		{
			name: "broadcast_skips_unjoined_and_excluded",
			env:  model.Envelope{Event: "user_status", Payload: payload, Broadcast: true, ExcludeConn: binhPhone.ID},
			want: map[*Client]bool{anPhone: true, anLaptop: true},
		},
		{
			name: "offline_user_gets_nothing",
			env:  model.Envelope{Event: "new_message", Payload: payload, Users: []uuid.UUID{uuid.New()}},
			want: map[*Client]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Deliver(tt.env)
			for _, c := range []*Client{anPhone, anLaptop, binhPhone, lurker} {
				got := pending(c)
				if tt.want[c] {
					require.Len(t, got, 1)
					assert.Equal(t, tt.env.Event, got[0].Event)
					assert.JSONEq(t, string(payload), string(got[0].Data))
				} else {
					assert.Empty(t, got)
				}
			}
		})
	}
}

func TestDeliverDropsForSlowConsumer(t *testing.T) {
	h := NewHub(zerolog.Nop())
	id := uuid.New()
	slow := joined(t, h, id)
	fast := joined(t, h, id)

	for range sendQueueSize + 10 {
		h.Deliver(model.Envelope{Event: "new_message", Users: []uuid.UUID{id}})
		pending(fast)
	}

	assert.Len(t, pending(slow), sendQueueSize)
}

func TestUnregister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	id := uuid.New()
	c := joined(t, h, id)
	_, err := h.EnterRoom(c.ID, "room_x")
	require.NoError(t, err)

	sess, ok := h.Unregister(c)
	require.True(t, ok)
	assert.Equal(t, model.ConnectionSession{ConnID: c.ID, Identity: id, Joined: true, Room: "room_x"}, sess)
	assert.Equal(t, 0, h.Connections(id))

	_, open := <-c.send
	assert.False(t, open)

	// Delivering afterwards must not touch the closed queue.
	h.Deliver(model.Envelope{Event: "x", Users: []uuid.UUID{id}})
	h.Deliver(model.Envelope{Event: "x", Room: "room_x"})

	_, ok = h.Unregister(c)
	assert.False(t, ok)
}

func TestRunStopsWithContext(t *testing.T) {
	h := NewHub(zerolog.Nop())
	id := uuid.New()
	c := joined(t, h, id)

	ctx, cancel := context.WithCancel(context.Background())
	envelopes := make(chan model.Envelope)
	done := make(chan struct{})
	go func() {
		h.Run(ctx, envelopes)
		close(done)
	}()

	envelopes <- model.Envelope{Event: "hello", Users: []uuid.UUID{id}}
	require.Eventually(t, func() bool { return len(c.send) == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestConcurrentRegistry(t *testing.T) {
	h := NewHub(zerolog.Nop())
	id := uuid.New()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newClient(h, id)
			_, _ = h.Bind(c.ID, id)
			_, _ = h.EnterRoom(c.ID, "room_shared")
			h.Deliver(model.Envelope{Event: "tick", Room: "room_shared"})
			h.Unregister(c)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, h.Connections(id))
}

func TestClientLimiters(t *testing.T) {
	c := NewClient(nil, uuid.New(), zerolog.Nop())
	assert.True(t, c.allow(false), "no limiter allows everything")

	c.SetMessageLimiter(2, time.Hour)
	c.SetGameLimiter(1, time.Hour)

	assert.True(t, c.allow(false))
	assert.True(t, c.allow(false))
	assert.False(t, c.allow(false))

	assert.True(t, c.allow(true))
	assert.False(t, c.allow(true))
}

func TestMetricEvent(t *testing.T) {
	assert.Equal(t, "send_message", metricEvent("send_message"))
	assert.Equal(t, "unknown", metricEvent("drop table users"))
}
