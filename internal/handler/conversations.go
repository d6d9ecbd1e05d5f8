package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/auth"
	"github.com/facenoel/chatter/internal/realtime"
)

type openConversationRequest struct {
	TargetID uuid.UUID `json:"targetId" validate:"required"`
}

type themeRequest struct {
	ThemeID string `json:"themeId" validate:"required"`
}

type quickReactionRequest struct {
	Reaction string `json:"reaction" validate:"required"`
}

type nicknameRequest struct {
	TargetUserID uuid.UUID `json:"targetUserId" validate:"required"`
	Nickname     string    `json:"nickname"`
}

// ServeOpenConversation creates or returns the caller's conversation with targetId.
func ServeOpenConversation(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.GetUserFromContext(r.Context())
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		var req openConversationRequest
		if !decodeValid(w, r, svc, logger, &req) {
			return
		}

		conv, err := svc.OpenConversation(r.Context(), actor, req.TargetID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// ServeInbox lists the caller's conversations with their unread counts.
func ServeInbox(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := auth.GetUserFromContext(r.Context())
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		inbox, err := svc.Inbox(r.Context(), actor)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, inbox)
	}
}

func ServeConversation(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}

		conv, err := svc.Conversation(r.Context(), actor, id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func ServeMarkRead(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}

		if err := svc.MarkRead(r.Context(), actor, id); err != nil {
			writeError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ServeSetTheme(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}

		var req themeRequest
		if !decodeValid(w, r, svc, logger, &req) {
			return
		}

		conv, err := svc.SetTheme(r.Context(), actor, id, req.ThemeID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func ServeSetQuickReaction(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}

		var req quickReactionRequest
		if !decodeValid(w, r, svc, logger, &req) {
			return
		}

		conv, err := svc.SetQuickReaction(r.Context(), actor, id, req.Reaction)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// ServeSetNickname sets or, with an empty nickname, clears a participant's nickname.
func ServeSetNickname(svc *realtime.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := conversationTarget(w, r, logger)
		if !ok {
			return
		}

		var req nicknameRequest
		if !decodeValid(w, r, svc, logger, &req) {
			return
		}

		conv, err := svc.SetNickname(r.Context(), actor, id, req.TargetUserID, req.Nickname)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// conversationTarget reads the caller and the {id} path segment, writing the
// failure response itself.
func conversationTarget(w http.ResponseWriter, r *http.Request, logger zerolog.Logger) (uuid.UUID, uuid.UUID, bool) {
	actor, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return uuid.UUID{}, uuid.UUID{}, false
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, logger, err)
		return uuid.UUID{}, uuid.UUID{}, false
	}
	return actor, id, true
}

func decodeValid(w http.ResponseWriter, r *http.Request, svc *realtime.Service, logger zerolog.Logger, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		writeError(w, logger, err)
		return false
	}
	if err := svc.Validate(v); err != nil {
		writeError(w, logger, err)
		return false
	}
	return true
}
