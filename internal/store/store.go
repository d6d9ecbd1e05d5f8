// Package store is the durable Conversation/Message store used by the realtime core.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/model"
)

// ErrNotFound is returned when a referenced user, conversation, or message does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the durable operations the realtime core depends on.
// PostgresStore and MemoryStore both implement it.
//
// Every mutation that touches contended state (unread counters, last-message
// pointer, recall and reaction fields) is a single atomic storage operation,
// so concurrent callers never lose updates.
type Store interface {
	Close()
	Ping(ctx context.Context) error

	// Users
	GetProfile(ctx context.Context, id uuid.UUID) (model.Profile, error)
	SetPresence(ctx context.Context, p model.Presence) error

	// Conversations
	FindOrCreatePair(ctx context.Context, a, b uuid.UUID) (*model.Conversation, bool, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]model.Conversation, error)
	SetTheme(ctx context.Context, id uuid.UUID, themeID string) error
	SetQuickReaction(ctx context.Context, id uuid.UUID, reaction string) error
	SetNickname(ctx context.Context, id, target uuid.UUID, nickname *string) error

	// Messages

	// SendMessage persists the message, moves the conversation's last-message
	// pointer, and increments the unread counter of every participant except
	// the sender, all in one step.
	SendMessage(ctx context.Context, in model.NewMessage) (*model.Message, error)
	// MarkViewed resets the viewer's unread counter to zero and marks messages
	// from other participants as read.
	MarkViewed(ctx context.Context, conversationID, viewer uuid.UUID) error
	GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error)
	// ListMessages returns up to limit messages older than before, oldest first.
	ListMessages(ctx context.Context, conversationID uuid.UUID, before model.MessageCursor, limit int) ([]model.Message, error)
	// RecallMessage moves an active message sent by sender to the revoked
	// state. changed is false when the message was already revoked.
	RecallMessage(ctx context.Context, id, sender uuid.UUID) (msg *model.Message, changed bool, err error)
	SetReaction(ctx context.Context, id uuid.UUID, reaction *string) (*model.Message, error)
	// FinishGameInvite rewrites a game invite into a text summary. changed is
	// false when the message had already been rewritten.
	FinishGameInvite(ctx context.Context, id uuid.UUID, summary string) (msg *model.Message, changed bool, err error)
}

// PairKey is the unordered key of a two-party conversation.
func PairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}
