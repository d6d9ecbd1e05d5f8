// Package model defines data structure.
package model

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// MessageType is the kind of content a message carries.
type MessageType string

const (
	TypeText       MessageType = "text"
	TypeImage      MessageType = "image"
	TypeVideo      MessageType = "video"
	TypeAudio      MessageType = "audio"
	TypeSticker    MessageType = "sticker"
	TypeSystem     MessageType = "system"
	TypeGameInvite MessageType = "game_invite"

	// TypeRevoked is terminal. A recalled message never leaves it.
	TypeRevoked MessageType = "revoked"
)

// RevokedContent replaces the content of every recalled message.
const RevokedContent = "Tin nhắn đã được thu hồi"

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeSticker, TypeSystem, TypeGameInvite, TypeRevoked:
		return true
	}
	return false
}

// IsMedia reports whether content of this type is a URI to externally stored media.
func (t MessageType) IsMedia() bool {
	return t == TypeImage || t == TypeVideo || t == TypeAudio || t == TypeSticker
}

// Profile is the display information of an identity, owned by the auth subsystem.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
}

// ReplyPreview is the slice of a reply-target shown alongside a message.
type ReplyPreview struct {
	ID      uuid.UUID   `json:"id"`
	Content string      `json:"content"`
	Type    MessageType `json:"type"`
	Sender  Profile     `json:"sender"`
}

// Message holds information about a single message.
type Message struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID uuid.UUID     `json:"conversationId"`
	Sender         Profile       `json:"sender"`
	Content        string        `json:"content"`
	Type           MessageType   `json:"type"`
	IsRead         bool          `json:"isRead"`
	IsRecalled     bool          `json:"isRecalled"`
	ReplyTo        *ReplyPreview `json:"replyTo,omitempty"`
	Reaction       *string       `json:"reaction"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// NewMessage is the input for persisting a message.
type NewMessage struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	Type           MessageType
	ReplyTo        *uuid.UUID
}

// MessageCursor pages history newest first. History is ordered by
// (CreatedAt, ID), so messages sharing a timestamp are never skipped.
// A zero BeforeID admits every message strictly older than Before.
type MessageCursor struct {
	Before   time.Time
	BeforeID uuid.UUID
}

// IsZero reports whether the cursor selects the newest page.
func (c MessageCursor) IsZero() bool { return c.Before.IsZero() }

// Admits reports whether a message created at createdAt with id sorts
// before the cursor.
func (c MessageCursor) Admits(createdAt time.Time, id uuid.UUID) bool {
	if c.IsZero() {
		return true
	}
	if !createdAt.Equal(c.Before) {
		return createdAt.Before(c.Before)
	}
	return bytes.Compare(id[:], c.BeforeID[:]) < 0
}
