package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTheme         = "galaxy"
	DefaultQuickReaction = "👍"
)

// Conversation is the durable record of a chat between two or more identities.
type Conversation struct {
	ID            uuid.UUID            `json:"id"`
	Participants  []Profile            `json:"participants"`
	LastMessage   *Message             `json:"lastMessage,omitempty"`
	UnreadCounts  map[uuid.UUID]int    `json:"unreadCounts"`
	ThemeID       string               `json:"themeId"`
	QuickReaction string               `json:"quickReaction"`
	Nicknames     map[uuid.UUID]string `json:"nicknames"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// HasParticipant reports whether id belongs to the participant set.
func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ParticipantIDs returns the identities of every participant.
func (c *Conversation) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// InboxEntry is a conversation as seen by one participant.
type InboxEntry struct {
	Conversation
	UnreadCount int `json:"unreadCount"`
}

// Presence is the online status of an identity.
type Presence struct {
	UserID     uuid.UUID  `json:"userId"`
	IsOnline   bool       `json:"isOnline"`
	LastActive *time.Time `json:"lastActive"`
}
