package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/realtime"
)

type sendMessageRequest struct {
	Content string            `json:"content"`
	Type    model.MessageType `json:"type"`
	ReplyTo *uuid.UUID        `json:"replyTo"`
}

type reactRequest struct {
	Reaction *string `json:"reaction"`
}

// ServeMessages loads a page of chat history, oldest first. Without a
// before cursor the newest page is returned and counts as a view. Passing
// the oldest message's createdAt and id as before and beforeId continues
// from that message.
func ServeMessages(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}

		before, limit, err := pageParams(r)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		msgs, err := svc.Messages(r.Context(), actor, id, before, limit)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func pageParams(r *http.Request) (model.MessageCursor, int, error) {
	var (
		cursor model.MessageCursor
		limit  int
		err    error
	)
	q := r.URL.Query()

	if v := q.Get("before"); v != "" {
		cursor.Before, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return cursor, 0, fmt.Errorf("%w: before must be an RFC 3339 timestamp", realtime.ErrValidation)
		}
	}
	if v := q.Get("beforeId"); v != "" {
		if cursor.Before.IsZero() {
			return cursor, 0, fmt.Errorf("%w: beforeId requires before", realtime.ErrValidation)
		}
		cursor.BeforeID, err = uuid.Parse(v)
		if err != nil {
			return cursor, 0, fmt.Errorf("%w: beforeId must be a UUID", realtime.ErrValidation)
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return cursor, 0, fmt.Errorf("%w: limit must be a positive integer", realtime.ErrValidation)
		}
	}
	return cursor, limit, nil
}

func ServeSendMessage(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}

		var req sendMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, logger, err)
			return
		}

		msg, err := svc.SendMessage(r.Context(), actor, realtime.SendMessageInput{
			ConversationID: id,
			Content:        req.Content,
			Type:           req.Type,
			ReplyTo:        req.ReplyTo,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func ServeRecallMessage(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}
		messageID, err := pathUUID(r, "messageId")
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if err := svc.MessageIn(r.Context(), id, messageID); err != nil {
			writeError(w, logger, err)
			return
		}

		msg, err := svc.RecallMessage(r.Context(), actor, messageID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// ServeReactMessage sets the reaction, or clears it with null or "".
func ServeReactMessage(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}
		messageID, err := pathUUID(r, "messageId")
		if err != nil {
			writeError(w, logger, err)
			return
		}

		var req reactRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, logger, err)
			return
		}
		if err := svc.MessageIn(r.Context(), id, messageID); err != nil {
			writeError(w, logger, err)
			return
		}

		in := realtime.ReactInput{MessageID: messageID}
		if req.Reaction != nil {
			in.Reaction = *req.Reaction
		}
		msg, err := svc.ReactMessage(r.Context(), actor, in)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}
