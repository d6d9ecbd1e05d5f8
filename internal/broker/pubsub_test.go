package broker

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facenoel/chatter/internal/model"
)

func receive(t *testing.T, ch <-chan model.Envelope) model.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return model.Envelope{}
	}
}

func TestLocalFansOutToEverySubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocal()
	first, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	env := model.Envelope{Event: "new_message", Payload: json.RawMessage(`{"id":"1"}`), Users: []uuid.UUID{uuid.New()}}
	require.NoError(t, bus.Publish(ctx, env))

	assert.Equal(t, env, receive(t, first))
	assert.Equal(t, env, receive(t, second))
}

func TestLocalClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewLocal()
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()

	require.NoError(t, rec.Publish(ctx, model.Envelope{Event: "user_status", Broadcast: true}))
	require.NoError(t, rec.Publish(ctx, model.Envelope{Event: "new_message"}))

	assert.Len(t, rec.Envelopes(), 2)
	assert.Len(t, rec.Events("user_status"), 1)

	rec.Reset()
	assert.Empty(t, rec.Envelopes())
}

func TestJetStreamRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL environment variable is not set")
	}

	conn, err := nats.Connect(url, nats.Timeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	js, err := jetstream.New(conn)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := NewJetStream(ctx, js, zerolog.Nop())
	require.NoError(t, err)

	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	env := model.Envelope{Event: "game_state_update", Payload: json.RawMessage(`{"roomId":"r"}`), Room: "r", ExcludeConn: "c1"}
	require.NoError(t, bus.Publish(ctx, env))

	got := receive(t, ch)
	assert.Equal(t, env.Event, got.Event)
	assert.Equal(t, env.Room, got.Room)
	assert.Equal(t, env.ExcludeConn, got.ExcludeConn)
	assert.JSONEq(t, string(env.Payload), string(got.Payload))
}
