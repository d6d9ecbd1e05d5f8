package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facenoel/chatter/internal/broker"
	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/presence"
	"github.com/facenoel/chatter/internal/store"
)

type fakeSessions struct {
	mu sync.Mutex
	m  map[string]*model.ConnectionSession
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{m: make(map[string]*model.ConnectionSession)}
}

func (f *fakeSessions) Bind(connID string, identity uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[connID]
	if !ok {
		s = &model.ConnectionSession{ConnID: connID}
		f.m[connID] = s
	}
	if s.Joined {
		return false, nil
	}
	s.Identity, s.Joined = identity, true
	return true, nil
}

func (f *fakeSessions) Session(connID string) (model.ConnectionSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[connID]
	if !ok {
		return model.ConnectionSession{}, false
	}
	return *s, true
}

func (f *fakeSessions) EnterRoom(connID, roomID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.m[connID]
	prev := s.Room
	s.Room = roomID
	return prev, nil
}

func (f *fakeSessions) ExitRoom(connID, roomID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.m[connID]
	if !ok || s.Room != roomID {
		return false
	}
	s.Room = ""
	return true
}

type harness struct {
	ctx      context.Context
	svc      *Service
	store    *store.MemoryStore
	bus      *broker.Recorder
	sessions *fakeSessions
}

func newHarness(t *testing.T, guard presence.CallGuard) *harness {
	t.Helper()
	h := &harness{
		ctx:      context.Background(),
		store:    store.NewMemoryStore(),
		bus:      broker.NewRecorder(),
		sessions: newFakeSessions(),
	}
	h.svc = NewService(Options{
		Store:     h.store,
		Bus:       h.bus,
		Sessions:  h.sessions,
		Tracker:   presence.NewMemoryTracker(),
		CallGuard: guard,
		Logger:    zerolog.Nop(),
	})
	return h
}

func (h *harness) user(name string) uuid.UUID {
	id := uuid.New()
	h.store.PutUser(model.Profile{ID: id, DisplayName: name})
	return id
}

func (h *harness) connect(t *testing.T, id uuid.UUID) string {
	t.Helper()
	connID := uuid.NewString()
	require.NoError(t, h.svc.Join(h.ctx, connID, id))
	return connID
}

func (h *harness) pair(t *testing.T, a, b uuid.UUID) *model.Conversation {
	t.Helper()
	conv, err := h.svc.OpenConversation(h.ctx, a, b)
	require.NoError(t, err)
	return conv
}

func (h *harness) last(t *testing.T, event string) model.Envelope {
	t.Helper()
	envs := h.bus.Events(event)
	require.NotEmpty(t, envs, "no %s emitted", event)
	return envs[len(envs)-1]
}

func decodeAs[T any](t *testing.T, env model.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func TestConversationUnreadLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2 := h.user("U1"), h.user("U2")

	conv := h.pair(t, u1, u2)
	assert.Equal(t, map[uuid.UUID]int{u1: 0, u2: 0}, conv.UnreadCounts)

	again := h.pair(t, u2, u1)
	assert.Equal(t, conv.ID, again.ID)

	msg, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: conv.ID, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.TypeText, msg.Type)

	conv, err = h.svc.Conversation(h.ctx, u2, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCounts[u2])
	assert.Equal(t, 0, conv.UnreadCounts[u1])
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "hi", conv.LastMessage.Content)

	env := h.last(t, EventNewMessage)
	assert.ElementsMatch(t, []uuid.UUID{u1, u2}, env.Users)
	assert.Equal(t, msg.ID, decodeAs[model.Message](t, env).ID)

	require.NoError(t, h.svc.MarkRead(h.ctx, u2, conv.ID))
	conv, err = h.svc.Conversation(h.ctx, u2, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCounts[u2])

	read := decodeAs[MessageReadPayload](t, h.last(t, EventMessageRead))
	assert.Equal(t, MessageReadPayload{ConversationID: conv.ID, UserID: u2}, read)

	// Viewing is idempotent.
	require.NoError(t, h.svc.MarkRead(h.ctx, u2, conv.ID))
	inbox, err := h.svc.Inbox(h.ctx, u2)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, 0, inbox[0].UnreadCount)
}

func TestOpenConversationValidation(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.user("U1")

	_, err := h.svc.OpenConversation(h.ctx, u1, u1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.OpenConversation(h.ctx, u1, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecall(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2 := h.user("U1"), h.user("U2")
	conv := h.pair(t, u1, u2)

	msg, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: conv.ID, Content: "secret"})
	require.NoError(t, err)

	t.Run("other identity is forbidden", func(t *testing.T) {
		_, err := h.svc.RecallMessage(h.ctx, u2, msg.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		got, err := h.store.GetMessage(h.ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, "secret", got.Content)
		assert.Equal(t, model.TypeText, got.Type)
		assert.Empty(t, h.bus.Events(EventMessageDeleted))
	})

	t.Run("sender recalls", func(t *testing.T) {
		got, err := h.svc.RecallMessage(h.ctx, u1, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TypeRevoked, got.Type)
		assert.Equal(t, model.RevokedContent, got.Content)
		assert.True(t, got.IsRecalled)

		envs := h.bus.Events(EventMessageDeleted)
		require.Len(t, envs, 1)
		assert.ElementsMatch(t, []uuid.UUID{u1, u2}, envs[0].Users)
	})

	t.Run("second recall is a silent success", func(t *testing.T) {
		got, err := h.svc.RecallMessage(h.ctx, u1, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, model.TypeRevoked, got.Type)
		assert.Len(t, h.bus.Events(EventMessageDeleted), 1)
	})

	t.Run("missing message", func(t *testing.T) {
		_, err := h.svc.RecallMessage(h.ctx, u1, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReactionIsIndependentOfRecall(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2, outsider := h.user("U1"), h.user("U2"), h.user("U3")
	conv := h.pair(t, u1, u2)

	msg, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: conv.ID, Content: "hello"})
	require.NoError(t, err)

	got, err := h.svc.ReactMessage(h.ctx, u2, ReactInput{MessageID: msg.ID, Reaction: "😂"})
	require.NoError(t, err)
	require.NotNil(t, got.Reaction)
	assert.Equal(t, "😂", *got.Reaction)
	assert.False(t, got.IsRecalled)

	_, err = h.svc.RecallMessage(h.ctx, u1, msg.ID)
	require.NoError(t, err)

	got, err = h.svc.ReactMessage(h.ctx, u1, ReactInput{MessageID: msg.ID, Reaction: "❤️"})
	require.NoError(t, err)
	assert.Equal(t, "❤️", *got.Reaction)
	assert.True(t, got.IsRecalled)
	assert.Equal(t, model.TypeRevoked, got.Type)

	got, err = h.svc.ReactMessage(h.ctx, u2, ReactInput{MessageID: msg.ID, Reaction: ""})
	require.NoError(t, err)
	assert.Nil(t, got.Reaction)

	p := decodeAs[MessageReactionPayload](t, h.last(t, EventMessageReaction))
	assert.Nil(t, p.Reaction)
	assert.Equal(t, u2, p.UserID)

	_, err = h.svc.ReactMessage(h.ctx, outsider, ReactInput{MessageID: msg.ID, Reaction: "👍"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFanoutReachesExactlyParticipants(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2, u3 := h.user("U1"), h.user("U2"), h.user("U3")
	conv := h.pair(t, u1, u2)

	_, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: conv.ID, Content: "just us"})
	require.NoError(t, err)

	env := h.last(t, EventNewMessage)
	assert.ElementsMatch(t, []uuid.UUID{u1, u2}, env.Users)
	assert.NotContains(t, env.Users, u3)
	assert.False(t, env.Broadcast)
	assert.Empty(t, env.Room)

	err = h.svc.Fanout(h.ctx, uuid.New(), EventNewMessage, struct{}{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2, u3 := h.user("U1"), h.user("U2"), h.user("U3")
	conv := h.pair(t, u1, u2)
	other := h.pair(t, u1, u3)

	foreign, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: other.ID, Content: "elsewhere"})
	require.NoError(t, err)
	h.bus.Reset()

	missing := uuid.New()
	tests := []struct {
		name  string
		actor uuid.UUID
		in    SendMessageInput
		want  error
	}{
		{"empty content", u1, SendMessageInput{ConversationID: conv.ID, Content: ""}, ErrValidation},
		{"markup only", u1, SendMessageInput{ConversationID: conv.ID, Content: "<script></script>"}, ErrValidation},
		{"unknown type", u1, SendMessageInput{ConversationID: conv.ID, Content: "x", Type: "hologram"}, ErrValidation},
		{"system type not sendable", u1, SendMessageInput{ConversationID: conv.ID, Content: "x", Type: model.TypeSystem}, ErrValidation},
		{"invite type not sendable", u1, SendMessageInput{ConversationID: conv.ID, Content: "x", Type: model.TypeGameInvite}, ErrValidation},
		{"media needs url", u1, SendMessageInput{ConversationID: conv.ID, Content: "not a url", Type: model.TypeImage}, ErrValidation},
		{"missing conversation", u1, SendMessageInput{ConversationID: uuid.New(), Content: "x"}, ErrNotFound},
		{"not a participant", u3, SendMessageInput{ConversationID: conv.ID, Content: "x"}, ErrForbidden},
		{"reply to missing message", u1, SendMessageInput{ConversationID: conv.ID, Content: "x", ReplyTo: &missing}, ErrValidation},
		{"reply across conversations", u1, SendMessageInput{ConversationID: conv.ID, Content: "x", ReplyTo: &foreign.ID}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.SendMessage(h.ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, h.bus.Envelopes(), "failed sends never emit")

	conv, err = h.svc.Conversation(h.ctx, u1, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCounts[u2])
}

func TestSendSanitizesAndReplies(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2 := h.user("U1"), h.user("U2")
	conv := h.pair(t, u1, u2)

	first, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: conv.ID, Content: "<b>bold</b> move"})
	require.NoError(t, err)
	assert.Equal(t, "bold move", first.Content)

	plain := []string{"don't", "Tom & Jerry", "1 < 2", "I <3 you", `say "hi"`}
	for _, text := range plain {
		msg, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: conv.ID, Content: text})
		require.NoError(t, err)
		assert.Equal(t, text, msg.Content)

		stored, err := h.store.GetMessage(h.ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, text, stored.Content)
	}

	img, err := h.svc.SendMessage(h.ctx, u2, SendMessageInput{
		ConversationID: conv.ID,
		Content:        "https://cdn.example/cat.png",
		Type:           model.TypeImage,
		ReplyTo:        &first.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/cat.png", img.Content)
	require.NotNil(t, img.ReplyTo)
	assert.Equal(t, first.ID, img.ReplyTo.ID)
	assert.Equal(t, "U1", img.ReplyTo.Sender.DisplayName)
}

func TestConcurrentSendsNeverLoseIncrements(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2 := h.user("U1"), h.user("U2")
	conv := h.pair(t, u1, u2)

	const (
		devices  = 4
		messages = 25
	)

	var wg sync.WaitGroup
	for _, sender := range []uuid.UUID{u1, u2} {
		for range devices {
			wg.Add(1)
			go func(sender uuid.UUID) {
				defer wg.Done()
				for range messages {
					_, err := h.svc.SendMessage(h.ctx, sender, SendMessageInput{ConversationID: conv.ID, Content: "ping"})
					assert.NoError(t, err)
				}
			}(sender)
		}
	}
	// u2 keeps viewing while u1's devices send; u1 never views.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range messages {
			assert.NoError(t, h.svc.MarkRead(h.ctx, u2, conv.ID))
		}
	}()
	wg.Wait()

	got, err := h.svc.Conversation(h.ctx, u1, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, devices*messages, got.UnreadCounts[u1])
	assert.GreaterOrEqual(t, got.UnreadCounts[u2], 0)
	assert.LessOrEqual(t, got.UnreadCounts[u2], devices*messages)
	assert.Len(t, h.bus.Events(EventNewMessage), 2*devices*messages)

	require.NoError(t, h.svc.MarkRead(h.ctx, u1, conv.ID))
	require.NoError(t, h.svc.MarkRead(h.ctx, u2, conv.ID))
	got, err = h.svc.Conversation(h.ctx, u1, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCounts[u1])
	assert.Equal(t, 0, got.UnreadCounts[u2])
}

func TestMessagesFirstPageCountsAsView(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2 := h.user("U1"), h.user("U2")
	conv := h.pair(t, u1, u2)

	for _, c := range []string{"a", "b", "c"} {
		_, err := h.svc.SendMessage(h.ctx, u1, SendMessageInput{ConversationID: conv.ID, Content: c})
		require.NoError(t, err)
	}

	msgs, err := h.svc.Messages(h.ctx, u2, conv.ID, model.MessageCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)

	got, err := h.svc.Conversation(h.ctx, u2, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCounts[u2])
	assert.Len(t, h.bus.Events(EventMessageRead), 1)

	older, err := h.svc.Messages(h.ctx, u2, conv.ID, model.MessageCursor{Before: msgs[0].CreatedAt, BeforeID: msgs[0].ID}, 2)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "a", older[0].Content)
	assert.Len(t, h.bus.Events(EventMessageRead), 1, "older pages are not a view")

	_, err = h.svc.Messages(h.ctx, h.user("U3"), conv.ID, model.MessageCursor{}, 0)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConversationSettings(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2, u3 := h.user("U1"), h.user("U2"), h.user("U3")
	conv := h.pair(t, u1, u2)

	got, err := h.svc.SetTheme(h.ctx, u2, conv.ID, "ocean")
	require.NoError(t, err)
	assert.Equal(t, "ocean", got.ThemeID)
	assert.Equal(t, ThemeChangedPayload{ConversationID: conv.ID, ThemeID: "ocean", UserID: u2},
		decodeAs[ThemeChangedPayload](t, h.last(t, EventThemeChanged)))

	got, err = h.svc.SetQuickReaction(h.ctx, u1, conv.ID, "🔥")
	require.NoError(t, err)
	assert.Equal(t, "🔥", got.QuickReaction)
	assert.ElementsMatch(t, []uuid.UUID{u1, u2}, h.last(t, EventQuickReactionChanged).Users)

	got, err = h.svc.SetNickname(h.ctx, u1, conv.ID, u2, "Bestie")
	require.NoError(t, err)
	assert.Equal(t, "Bestie", got.Nicknames[u2])
	assert.Equal(t, u2, decodeAs[NicknameChangedPayload](t, h.last(t, EventNicknameChanged)).TargetUserID)

	got, err = h.svc.SetNickname(h.ctx, u1, conv.ID, u2, "")
	require.NoError(t, err)
	assert.NotContains(t, got.Nicknames, u2)

	_, err = h.svc.SetNickname(h.ctx, u1, conv.ID, u3, "Stranger")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.SetTheme(h.ctx, u1, conv.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.SetTheme(h.ctx, u3, conv.ID, "ocean")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err = h.svc.Conversation(h.ctx, u1, conv.ID)
	require.NoError(t, err)
	for id := range got.Nicknames {
		assert.True(t, got.HasParticipant(id))
	}
}

func TestJoinAndLeavePresence(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.user("U1")

	phone := h.connect(t, u1)
	env := h.last(t, EventUserStatus)
	assert.True(t, env.Broadcast)
	assert.Equal(t, phone, env.ExcludeConn)
	assert.True(t, decodeAs[model.Presence](t, env).IsOnline)

	// A repeated join on the same connection changes nothing.
	require.NoError(t, h.svc.Join(h.ctx, phone, u1))
	assert.Len(t, h.bus.Events(EventUserStatus), 1)

	laptop := h.connect(t, u1)

	sess, _ := h.sessions.Session(phone)
	h.svc.Leave(h.ctx, sess)
	p := decodeAs[model.Presence](t, h.last(t, EventUserStatus))
	assert.True(t, p.IsOnline, "laptop is still connected")
	require.NotNil(t, p.LastActive)

	sess, _ = h.sessions.Session(laptop)
	h.svc.Leave(h.ctx, sess)
	p = decodeAs[model.Presence](t, h.last(t, EventUserStatus))
	assert.False(t, p.IsOnline)
	require.NotNil(t, p.LastActive)

	stored, ok := h.store.Presence(u1)
	require.True(t, ok)
	assert.False(t, stored.IsOnline)
	assert.NotNil(t, stored.LastActive)
}

func TestDispatchRequiresJoin(t *testing.T) {
	h := newHarness(t, nil)
	u1, u2 := h.user("U1"), h.user("U2")
	conv := h.pair(t, u1, u2)
	connID := uuid.NewString()

	data, _ := json.Marshal(SendMessageInput{ConversationID: conv.ID, Content: "early"})
	err := h.svc.Dispatch(h.ctx, connID, u1, model.Frame{Event: EventSendMessage, Data: data})
	assert.ErrorIs(t, err, ErrNotJoined)

	spoof, _ := json.Marshal(JoinPayload{UserID: &u2})
	err = h.svc.Dispatch(h.ctx, connID, u1, model.Frame{Event: EventJoin, Data: spoof})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, h.svc.Dispatch(h.ctx, connID, u1, model.Frame{Event: EventJoin}))
	require.NoError(t, h.svc.Dispatch(h.ctx, connID, u1, model.Frame{Event: EventSendMessage, Data: data}))

	err = h.svc.Dispatch(h.ctx, connID, u1, model.Frame{Event: "teleport"})
	assert.ErrorIs(t, err, ErrValidation)

	err = h.svc.Dispatch(h.ctx, connID, u1, model.Frame{Event: EventMarkRead, Data: json.RawMessage(`{"conversationId":`)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrNotFound, "not_found"},
		{ErrForbidden, "forbidden"},
		{ErrValidation, "validation_failed"},
		{ErrStorage, "storage_failure"},
		{ErrNotJoined, "not_joined"},
		{ErrBusy, "busy"},
		{ErrRateLimited, "rate_limited"},
		{assert.AnError, "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, Code(tt.err))
	}

	frame := ErrorFrame(EventRecallMessage, ErrForbidden)
	assert.Equal(t, EventError, frame.Event)
	assert.JSONEq(t, `{"event":"recall_message","code":"forbidden","message":"forbidden"}`, string(frame.Data))
}
