package realtime

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/store"
)

// SendMessage persists a message from actor, bumps every other participant's
// unread counter and delivers new_message to all participants, the sender's
// other devices included.
func (s *Service) SendMessage(ctx context.Context, actor uuid.UUID, in SendMessageInput) (*model.Message, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = model.TypeText
	}

	content, err := s.cleanContent(in.Type, in.Content)
	if err != nil {
		return nil, err
	}

	conv, err := s.participantConversation(ctx, actor, in.ConversationID)
	if err != nil {
		return nil, err
	}

	if in.ReplyTo != nil {
		target, err := s.store.GetMessage(ctx, *in.ReplyTo)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: reply target does not exist", ErrValidation)
		}
		if err != nil {
			return nil, storeError(err, "reply target")
		}
		if target.ConversationID != conv.ID {
			return nil, fmt.Errorf("%w: reply target belongs to another conversation", ErrValidation)
		}
	}

	return s.send(ctx, conv, model.NewMessage{
		ConversationID: conv.ID,
		SenderID:       actor,
		Content:        content,
		Type:           in.Type,
		ReplyTo:        in.ReplyTo,
	})
}

func (s *Service) send(ctx context.Context, conv *model.Conversation, nm model.NewMessage) (*model.Message, error) {
	msg, err := s.store.SendMessage(ctx, nm)
	if err != nil {
		return nil, storeError(err, "send message")
	}

	s.fanout(ctx, conv, EventNewMessage, msg)
	return msg, nil
}

// cleanContent strips markup from textual content and requires media
// content to be an absolute URL.
func (s *Service) cleanContent(t model.MessageType, content string) (string, error) {
	if t.IsMedia() {
		content = strings.TrimSpace(content)
		if err := s.validate.Var(content, "required,url"); err != nil {
			return "", fmt.Errorf("%w: media content must be a URL", ErrValidation)
		}
		return content, nil
	}

	// The policy entity-encodes what it keeps; frames are JSON, not HTML.
	content = strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(content)))
	if content == "" {
		return "", fmt.Errorf("%w: content is required", ErrValidation)
	}
	return content, nil
}

// RecallMessage moves the actor's own message to the revoked state. Recalling
// an already revoked message succeeds without a second emission.
func (s *Service) RecallMessage(ctx context.Context, actor, messageID uuid.UUID) (*model.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, storeError(err, "message")
	}
	if msg.Sender.ID != actor {
		return nil, fmt.Errorf("%w: only the sender may recall a message", ErrForbidden)
	}
	if msg.IsRecalled {
		return msg, nil
	}

	msg, changed, err := s.store.RecallMessage(ctx, messageID, actor)
	if err != nil {
		return nil, storeError(err, "recall message")
	}
	if changed {
		s.fanoutMessage(ctx, msg, EventMessageDeleted, msg)
	}
	return msg, nil
}

// ReactMessage sets or clears the single reaction of a message. Any
// participant may react, in either message state.
func (s *Service) ReactMessage(ctx context.Context, actor uuid.UUID, in ReactInput) (*model.Message, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, storeError(err, "message")
	}
	conv, err := s.participantConversation(ctx, actor, msg.ConversationID)
	if err != nil {
		return nil, err
	}

	var reaction *string
	if r := strings.TrimSpace(in.Reaction); r != "" {
		reaction = &r
	}

	msg, err = s.store.SetReaction(ctx, in.MessageID, reaction)
	if err != nil {
		return nil, storeError(err, "reaction")
	}

	s.fanout(ctx, conv, EventMessageReaction, MessageReactionPayload{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Reaction:       msg.Reaction,
		UserID:         actor,
	})
	return msg, nil
}

// MessageIn reports NotFound unless messageID belongs to conversationID. The
// REST surface addresses messages under their conversation.
func (s *Service) MessageIn(ctx context.Context, conversationID, messageID uuid.UUID) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return storeError(err, "message")
	}
	if msg.ConversationID != conversationID {
		return fmt.Errorf("%w: message", ErrNotFound)
	}
	return nil
}

// fanoutMessage emits to the participants of msg's conversation after a
// committed write. A lookup failure here is logged, never returned.
func (s *Service) fanoutMessage(ctx context.Context, msg *model.Message, event string, payload any) {
	if err := s.Fanout(ctx, msg.ConversationID, event, payload); err != nil {
		s.logger.Error().Err(err).Str("event", event).Str("message_id", msg.ID.String()).Msg("could not fan out")
	}
}
