package realtime

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/model"
)

// Inbound socket events.
const (
	EventJoin             = "join"
	EventMarkRead         = "mark_read"
	EventSendMessage      = "send_message"
	EventRecallMessage    = "recall_message"
	EventReactMessage     = "react_message"
	EventSendGameInvite   = "send_game_invite"
	EventAcceptGameInvite = "accept_game_invite"
	EventJoinGameRoom     = "join_game_room"
	EventMakeGameMove     = "make_game_move"
	EventUpdateGameState  = "update_game_state"
	EventGameOverSignal   = "game_over_signal"
	EventLeaveGameRoom    = "leave_game_room"
	EventGameFinished     = "game_finished"
	EventCallInvite       = "call_invite"
	EventCallAccepted     = "call_accepted"
	EventCallRejected     = "call_rejected"
	EventCallCancelled    = "call_cancelled"
	EventCallEnded        = "call_ended"
)

// Outbound events. Call events keep their inbound names.
const (
	EventUserStatus           = "user_status"
	EventNewMessage           = "new_message"
	EventMessageRead          = "message_read"
	EventMessageDeleted       = "message_deleted"
	EventMessageReaction      = "message_reaction"
	EventThemeChanged         = "theme_changed"
	EventQuickReactionChanged = "quick_reaction_changed"
	EventNicknameChanged      = "nickname_changed"
	EventGameStarted          = "game_started"
	EventOpponentMove         = "opponent_move"
	EventOpponentInput        = "opponent_input"
	EventGameStateUpdate      = "game_state_update"
	EventGameOver             = "game_over"
	EventOpponentLeft         = "opponent_left"
	EventUpdateMessage        = "update_message"
	EventMessageUpdated       = "message_updated"
	EventError                = "error"
)

// IsCallEvent reports whether event is one of the relayed call-signaling events.
func IsCallEvent(event string) bool {
	switch event {
	case EventCallInvite, EventCallAccepted, EventCallRejected, EventCallCancelled, EventCallEnded:
		return true
	}
	return false
}

// IsGameEvent reports whether event belongs to the high-frequency game class.
func IsGameEvent(event string) bool {
	switch event {
	case EventJoinGameRoom, EventMakeGameMove, EventUpdateGameState, EventGameOverSignal, EventLeaveGameRoom:
		return true
	}
	return false
}

// Inbound payloads

type JoinPayload struct {
	UserID *uuid.UUID `json:"userId"`
}

type ConversationRef struct {
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
}

type SendMessageInput struct {
	ConversationID uuid.UUID         `json:"conversationId" validate:"required"`
	Content        string            `json:"content" validate:"required,max=5000"`
	Type           model.MessageType `json:"type" validate:"omitempty,oneof=text image video audio sticker"`
	ReplyTo        *uuid.UUID        `json:"replyTo"`
}

type MessageRef struct {
	MessageID uuid.UUID `json:"messageId" validate:"required"`
}

type ReactInput struct {
	MessageID uuid.UUID `json:"messageId" validate:"required"`
	Reaction  string    `json:"reaction" validate:"max=32"`
}

type GameInviteInput struct {
	ReceiverID uuid.UUID `json:"receiverId" validate:"required"`
	GameType   string    `json:"gameType" validate:"required,max=32"`
}

type GameAcceptInput struct {
	SenderID   uuid.UUID `json:"senderId" validate:"required"`
	ReceiverID uuid.UUID `json:"receiverId" validate:"required"`
	GameType   string    `json:"gameType" validate:"required,max=32"`
	MessageID  uuid.UUID `json:"messageId" validate:"required"`
}

type RoomRef struct {
	RoomID string `json:"roomId" validate:"required,max=128"`
}

type GameFinishInput struct {
	RoomID    string    `json:"roomId" validate:"max=128"`
	GameType  string    `json:"gameType" validate:"max=32"`
	MessageID uuid.UUID `json:"messageId" validate:"required"`
}

type CallSignal struct {
	To uuid.UUID `json:"to" validate:"required"`
}

// Outbound payloads

type MessageReadPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
}

type MessageReactionPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
	Reaction       *string   `json:"reaction"`
	UserID         uuid.UUID `json:"userId"`
}

type ThemeChangedPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ThemeID        string    `json:"themeId"`
	UserID         uuid.UUID `json:"userId"`
}

type QuickReactionChangedPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	QuickReaction  string    `json:"quickReaction"`
	UserID         uuid.UUID `json:"userId"`
}

type NicknameChangedPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	TargetUserID   uuid.UUID `json:"targetUserId"`
	Nickname       string    `json:"nickname"`
	UserID         uuid.UUID `json:"userId"`
}

type OpponentLeftPayload struct {
	RoomID string    `json:"roomId"`
	UserID uuid.UUID `json:"userId"`
}

type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorFrame builds the frame reported to the acting connection when event fails.
func ErrorFrame(event string, err error) model.Frame {
	data, _ := json.Marshal(ErrorPayload{Event: event, Code: Code(err), Message: err.Error()})
	return model.Frame{Event: EventError, Data: data}
}
