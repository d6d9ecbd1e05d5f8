package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/model"
)

type memUser struct {
	profile    model.Profile
	isOnline   bool
	lastActive *time.Time
}

type memConversation struct {
	id            uuid.UUID
	pairKey       string
	participants  []uuid.UUID
	unread        map[uuid.UUID]int
	nicknames     map[uuid.UUID]string
	themeID       string
	quickReaction string
	lastMessage   uuid.UUID
	createdAt     time.Time
	updatedAt     time.Time
}

type memMessage struct {
	id             uuid.UUID
	conversationID uuid.UUID
	senderID       uuid.UUID
	content        string
	typ            model.MessageType
	isRead         bool
	isRecalled     bool
	replyTo        *uuid.UUID
	reaction       *string
	createdAt      time.Time
	updatedAt      time.Time
}

// MemoryStore is an in-process Store. Every operation holds a single mutex,
// which gives it the same atomicity the Postgres store gets from transactions.
// It backs development runs without DB_URL and the realtime tests.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*memUser
	conversations map[uuid.UUID]*memConversation
	pairs         map[string]uuid.UUID
	messages      map[uuid.UUID]*memMessage
	byConv        map[uuid.UUID][]uuid.UUID
	now           func() time.Time
	lastStamp     time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uuid.UUID]*memUser),
		conversations: make(map[uuid.UUID]*memConversation),
		pairs:         make(map[string]uuid.UUID),
		messages:      make(map[uuid.UUID]*memMessage),
		byConv:        make(map[uuid.UUID][]uuid.UUID),
		now:           time.Now,
	}
}

// PutUser registers or replaces a profile. Users are owned by the auth
// subsystem; this is how tests and development runs seed them.
func (s *MemoryStore) PutUser(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[p.ID]; ok {
		u.profile = p
		return
	}
	s.users[p.ID] = &memUser{profile: p}
}

// Presence returns the stored presence of id.
func (s *MemoryStore) Presence(id uuid.UUID) (model.Presence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.Presence{}, false
	}
	return model.Presence{UserID: id, IsOnline: u.isOnline, LastActive: u.lastActive}, true
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) GetProfile(_ context.Context, id uuid.UUID) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return u.profile, nil
}

func (s *MemoryStore) SetPresence(_ context.Context, p model.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[p.UserID]
	if !ok {
		return ErrNotFound
	}
	u.isOnline = p.IsOnline
	if p.LastActive != nil {
		t := *p.LastActive
		u.lastActive = &t
	}
	return nil
}

func (s *MemoryStore) FindOrCreatePair(_ context.Context, a, b uuid.UUID) (*model.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := PairKey(a, b)
	if id, ok := s.pairs[key]; ok {
		return s.conversationLocked(s.conversations[id]), false, nil
	}

	now := s.now()
	c := &memConversation{
		id:            uuid.New(),
		pairKey:       key,
		participants:  []uuid.UUID{a, b},
		unread:        map[uuid.UUID]int{a: 0, b: 0},
		nicknames:     make(map[uuid.UUID]string),
		themeID:       model.DefaultTheme,
		quickReaction: model.DefaultQuickReaction,
		createdAt:     now,
		updatedAt:     now,
	}
	s.conversations[c.id] = c
	s.pairs[key] = c.id
	return s.conversationLocked(c), true, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.conversationLocked(c), nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID uuid.UUID) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Conversation
	for _, c := range s.conversations {
		if _, ok := c.unread[userID]; ok {
			out = append(out, *s.conversationLocked(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) SetTheme(_ context.Context, id uuid.UUID, themeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.themeID = themeID
	c.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetQuickReaction(_ context.Context, id uuid.UUID, reaction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.quickReaction = reaction
	c.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetNickname(_ context.Context, id, target uuid.UUID, nickname *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.unread[target]; !ok {
		return ErrNotFound
	}
	if nickname == nil {
		delete(c.nicknames, target)
	} else {
		c.nicknames[target] = *nickname
	}
	return nil
}

func (s *MemoryStore) SendMessage(_ context.Context, in model.NewMessage) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[in.ConversationID]
	if !ok {
		return nil, ErrNotFound
	}
	if in.ReplyTo != nil {
		if _, ok := s.messages[*in.ReplyTo]; !ok {
			return nil, ErrNotFound
		}
	}

	now := s.stamp()
	m := &memMessage{
		id:             uuid.New(),
		conversationID: c.id,
		senderID:       in.SenderID,
		content:        in.Content,
		typ:            in.Type,
		replyTo:        in.ReplyTo,
		createdAt:      now,
		updatedAt:      now,
	}
	s.messages[m.id] = m
	s.byConv[c.id] = append(s.byConv[c.id], m.id)

	c.lastMessage = m.id
	c.updatedAt = now
	for uid := range c.unread {
		if uid != in.SenderID {
			c.unread[uid]++
		}
	}
	return s.messageLocked(m), nil
}

func (s *MemoryStore) MarkViewed(_ context.Context, conversationID, viewer uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.unread[viewer]; !ok {
		return ErrNotFound
	}
	c.unread[viewer] = 0
	for _, id := range s.byConv[conversationID] {
		if m := s.messages[id]; m.senderID != viewer {
			m.isRead = true
		}
	}
	return nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id uuid.UUID) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.messageLocked(m), nil
}

// ListMessages returns up to limit messages older than the cursor, oldest first.
func (s *MemoryStore) ListMessages(_ context.Context, conversationID uuid.UUID, before model.MessageCursor, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byConv[conversationID]
	end := sort.Search(len(ids), func(i int) bool {
		m := s.messages[ids[i]]
		return !before.Admits(m.createdAt, m.id)
	})
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}

	out := make([]model.Message, 0, end-start)
	for _, id := range ids[start:end] {
		out = append(out, *s.messageLocked(s.messages[id]))
	}
	return out, nil
}

func (s *MemoryStore) RecallMessage(_ context.Context, id, sender uuid.UUID) (*model.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if m.isRecalled || m.senderID != sender {
		return s.messageLocked(m), false, nil
	}
	m.isRecalled = true
	m.typ = model.TypeRevoked
	m.content = model.RevokedContent
	m.updatedAt = s.now()
	return s.messageLocked(m), true, nil
}

func (s *MemoryStore) SetReaction(_ context.Context, id uuid.UUID, reaction *string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	if reaction == nil {
		m.reaction = nil
	} else {
		r := *reaction
		m.reaction = &r
	}
	m.updatedAt = s.now()
	return s.messageLocked(m), nil
}

func (s *MemoryStore) FinishGameInvite(_ context.Context, id uuid.UUID, summary string) (*model.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if m.typ != model.TypeGameInvite {
		return s.messageLocked(m), false, nil
	}
	m.typ = model.TypeText
	m.content = summary
	m.updatedAt = s.now()
	return s.messageLocked(m), true, nil
}

// stamp returns a creation time strictly after every earlier one, so
// cursor pagination never sees two messages at the same instant.
func (s *MemoryStore) stamp() time.Time {
	t := s.now()
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = t
	return t
}

func (s *MemoryStore) profileLocked(id uuid.UUID) model.Profile {
	if u, ok := s.users[id]; ok {
		return u.profile
	}
	return model.Profile{ID: id}
}

func (s *MemoryStore) conversationLocked(c *memConversation) *model.Conversation {
	conv := &model.Conversation{
		ID:            c.id,
		Participants:  make([]model.Profile, 0, len(c.participants)),
		UnreadCounts:  make(map[uuid.UUID]int, len(c.unread)),
		ThemeID:       c.themeID,
		QuickReaction: c.quickReaction,
		Nicknames:     make(map[uuid.UUID]string, len(c.nicknames)),
		CreatedAt:     c.createdAt,
		UpdatedAt:     c.updatedAt,
	}
	for _, uid := range c.participants {
		conv.Participants = append(conv.Participants, s.profileLocked(uid))
	}
	for uid, n := range c.unread {
		conv.UnreadCounts[uid] = n
	}
	for uid, nick := range c.nicknames {
		conv.Nicknames[uid] = nick
	}
	if m, ok := s.messages[c.lastMessage]; ok {
		conv.LastMessage = s.messageLocked(m)
	}
	return conv
}

func (s *MemoryStore) messageLocked(m *memMessage) *model.Message {
	out := &model.Message{
		ID:             m.id,
		ConversationID: m.conversationID,
		Sender:         s.profileLocked(m.senderID),
		Content:        m.content,
		Type:           m.typ,
		IsRead:         m.isRead,
		IsRecalled:     m.isRecalled,
		CreatedAt:      m.createdAt,
		UpdatedAt:      m.updatedAt,
	}
	if m.reaction != nil {
		r := *m.reaction
		out.Reaction = &r
	}
	if m.replyTo != nil {
		if r, ok := s.messages[*m.replyTo]; ok {
			out.ReplyTo = &model.ReplyPreview{
				ID:      r.id,
				Content: r.content,
				Type:    r.typ,
				Sender:  s.profileLocked(r.senderID),
			}
		}
	}
	return out
}
