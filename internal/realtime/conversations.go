package realtime

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/model"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200

	maxSettingLen = 64
)

func (s *Service) participantConversation(ctx context.Context, actor, id uuid.UUID) (*model.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if !conv.HasParticipant(actor) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	}
	return conv, nil
}

// OpenConversation returns the two-party conversation between actor and
// target, creating it with zeroed unread counters on first contact.
func (s *Service) OpenConversation(ctx context.Context, actor, target uuid.UUID) (*model.Conversation, error) {
	if target == uuid.Nil || target == actor {
		return nil, fmt.Errorf("%w: target must be another user", ErrValidation)
	}
	if _, err := s.store.GetProfile(ctx, target); err != nil {
		return nil, storeError(err, "target user")
	}

	conv, created, err := s.store.FindOrCreatePair(ctx, actor, target)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	if created {
		s.logger.Info().Str("conversation_id", conv.ID.String()).Msg("conversation created")
	}
	return conv, nil
}

// Inbox lists the actor's conversations, most recently active first.
func (s *Service) Inbox(ctx context.Context, actor uuid.UUID) ([]model.InboxEntry, error) {
	convs, err := s.store.ListConversations(ctx, actor)
	if err != nil {
		return nil, storeError(err, "conversations")
	}

	out := make([]model.InboxEntry, 0, len(convs))
	for _, c := range convs {
		out = append(out, model.InboxEntry{Conversation: c, UnreadCount: c.UnreadCounts[actor]})
	}
	return out, nil
}

func (s *Service) Conversation(ctx context.Context, actor, id uuid.UUID) (*model.Conversation, error) {
	return s.participantConversation(ctx, actor, id)
}

// Messages returns a page of history. Fetching the newest page counts as
// viewing the conversation.
func (s *Service) Messages(ctx context.Context, actor, id uuid.UUID, before model.MessageCursor, limit int) ([]model.Message, error) {
	if _, err := s.participantConversation(ctx, actor, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	msgs, err := s.store.ListMessages(ctx, id, before, limit)
	if err != nil {
		return nil, storeError(err, "messages")
	}

	if before.IsZero() {
		if err := s.MarkRead(ctx, actor, id); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// MarkRead resets the actor's unread counter, marks the others' messages read
// and tells every participant with a single message_read event.
func (s *Service) MarkRead(ctx context.Context, actor, id uuid.UUID) error {
	conv, err := s.participantConversation(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.store.MarkViewed(ctx, id, actor); err != nil {
		return storeError(err, "mark viewed")
	}

	s.fanout(ctx, conv, EventMessageRead, MessageReadPayload{ConversationID: id, UserID: actor})
	return nil
}

func (s *Service) SetTheme(ctx context.Context, actor, id uuid.UUID, themeID string) (*model.Conversation, error) {
	themeID, err := setting(themeID, "themeId")
	if err != nil {
		return nil, err
	}
	if _, err := s.participantConversation(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := s.store.SetTheme(ctx, id, themeID); err != nil {
		return nil, storeError(err, "theme")
	}

	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	s.fanout(ctx, conv, EventThemeChanged, ThemeChangedPayload{ConversationID: id, ThemeID: themeID, UserID: actor})
	return conv, nil
}

func (s *Service) SetQuickReaction(ctx context.Context, actor, id uuid.UUID, reaction string) (*model.Conversation, error) {
	reaction, err := setting(reaction, "quickReaction")
	if err != nil {
		return nil, err
	}
	if _, err := s.participantConversation(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := s.store.SetQuickReaction(ctx, id, reaction); err != nil {
		return nil, storeError(err, "quick reaction")
	}

	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	s.fanout(ctx, conv, EventQuickReactionChanged, QuickReactionChangedPayload{ConversationID: id, QuickReaction: reaction, UserID: actor})
	return conv, nil
}

// SetNickname sets target's nickname in the conversation. An empty nickname
// clears it. target must be a participant.
func (s *Service) SetNickname(ctx context.Context, actor, id, target uuid.UUID, nickname string) (*model.Conversation, error) {
	nickname = strings.TrimSpace(nickname)
	if utf8.RuneCountInString(nickname) > maxSettingLen {
		return nil, fmt.Errorf("%w: nickname is too long", ErrValidation)
	}

	conv, err := s.participantConversation(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(target) {
		return nil, fmt.Errorf("%w: nickname target is not a participant", ErrValidation)
	}

	var value *string
	if nickname != "" {
		value = &nickname
	}
	if err := s.store.SetNickname(ctx, id, target, value); err != nil {
		return nil, storeError(err, "nickname")
	}

	conv, err = s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, storeError(err, "conversation")
	}
	s.fanout(ctx, conv, EventNicknameChanged, NicknameChangedPayload{
		ConversationID: id,
		TargetUserID:   target,
		Nickname:       nickname,
		UserID:         actor,
	})
	return conv, nil
}

func setting(value, field string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if utf8.RuneCountInString(value) > maxSettingLen {
		return "", fmt.Errorf("%w: %s is too long", ErrValidation, field)
	}
	return value, nil
}
