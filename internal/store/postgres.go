package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facenoel/chatter/internal/database"
	"github.com/facenoel/chatter/internal/model"
)

// PostgresStore implements Store on top of pgx and the typed queries in internal/database.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    *database.Queries
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the postgresql database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not ping the postgresql database: %w", err)
	}
	return NewPostgresStoreFromPool(pool), nil
}

// NewPostgresStoreFromPool wraps an existing pool. The store takes ownership of it.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: database.New(pool)}
}

// Pool exposes the underlying pool for migrations.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) inTx(ctx context.Context, fn func(q *database.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.q.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Users

func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	u, err := s.q.GetUserById(ctx, pgUUID(id))
	if err != nil {
		return model.Profile{}, notFound(err, "get user")
	}
	return model.Profile{ID: id, DisplayName: u.DisplayName, AvatarURL: u.AvatarUrl}, nil
}

func (s *PostgresStore) SetPresence(ctx context.Context, p model.Presence) error {
	arg := database.SetUserPresenceParams{ID: pgUUID(p.UserID), IsOnline: p.IsOnline}
	if p.LastActive != nil {
		arg.LastActive = pgtype.Timestamptz{Time: *p.LastActive, Valid: true}
	}
	n, err := s.q.SetUserPresence(ctx, arg)
	if err != nil {
		return fmt.Errorf("store: set presence: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Conversations

func (s *PostgresStore) FindOrCreatePair(ctx context.Context, a, b uuid.UUID) (*model.Conversation, bool, error) {
	key := pgtype.Text{String: PairKey(a, b), Valid: true}

	var (
		id      pgtype.UUID
		created bool
	)
	err := s.inTx(ctx, func(q *database.Queries) error {
		row, err := q.InsertPairConversation(ctx, database.InsertPairConversationParams{
			ID:      pgUUID(uuid.New()),
			PairKey: key,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			existing, err := q.GetConversationByPairKey(ctx, key)
			if err != nil {
				return fmt.Errorf("store: get conversation by pair: %w", err)
			}
			id = existing.ID
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: insert conversation: %w", err)
		}

		for _, user := range []uuid.UUID{a, b} {
			if err := q.AddParticipant(ctx, database.AddParticipantParams{
				ConversationID: row.ID,
				UserID:         pgUUID(user),
			}); err != nil {
				return fmt.Errorf("store: add participant: %w", err)
			}
		}
		id, created = row.ID, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	conv, err := s.GetConversation(ctx, uuid.UUID(id.Bytes))
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	row, err := s.q.GetConversation(ctx, pgUUID(id))
	if err != nil {
		return nil, notFound(err, "get conversation")
	}
	return s.hydrateConversation(ctx, row)
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]model.Conversation, error) {
	rows, err := s.q.ListConversationsForUser(ctx, pgUUID(userID))
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}

	out := make([]model.Conversation, 0, len(rows))
	for _, row := range rows {
		conv, err := s.hydrateConversation(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, nil
}

func (s *PostgresStore) hydrateConversation(ctx context.Context, row database.Conversation) (*model.Conversation, error) {
	parts, err := s.q.ListParticipants(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("store: list participants: %w", err)
	}

	conv := &model.Conversation{
		ID:            uuid.UUID(row.ID.Bytes),
		Participants:  make([]model.Profile, 0, len(parts)),
		UnreadCounts:  make(map[uuid.UUID]int, len(parts)),
		ThemeID:       row.ThemeID,
		QuickReaction: row.QuickReaction,
		Nicknames:     make(map[uuid.UUID]string),
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
	}
	for _, p := range parts {
		uid := uuid.UUID(p.UserID.Bytes)
		conv.Participants = append(conv.Participants, model.Profile{
			ID:          uid,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarUrl,
		})
		conv.UnreadCounts[uid] = int(p.UnreadCount)
		if p.Nickname.Valid {
			conv.Nicknames[uid] = p.Nickname.String
		}
	}

	if row.LastMessageID.Valid {
		last, err := s.q.GetMessage(ctx, row.LastMessageID)
		if err != nil {
			return nil, fmt.Errorf("store: get last message: %w", err)
		}
		m := messageFromRow(last)
		conv.LastMessage = &m
	}
	return conv, nil
}

func (s *PostgresStore) SetTheme(ctx context.Context, id uuid.UUID, themeID string) error {
	n, err := s.q.SetTheme(ctx, database.SetThemeParams{ID: pgUUID(id), ThemeID: themeID})
	return affected(n, err, "set theme")
}

func (s *PostgresStore) SetQuickReaction(ctx context.Context, id uuid.UUID, reaction string) error {
	n, err := s.q.SetQuickReaction(ctx, database.SetQuickReactionParams{ID: pgUUID(id), QuickReaction: reaction})
	return affected(n, err, "set quick reaction")
}

func (s *PostgresStore) SetNickname(ctx context.Context, id, target uuid.UUID, nickname *string) error {
	arg := database.SetNicknameParams{ConversationID: pgUUID(id), UserID: pgUUID(target)}
	if nickname != nil {
		arg.Nickname = pgtype.Text{String: *nickname, Valid: true}
	}
	n, err := s.q.SetNickname(ctx, arg)
	return affected(n, err, "set nickname")
}

// Messages

// SendMessage reads the stored row back inside the transaction, so a
// committed message is always returned to the caller.
func (s *PostgresStore) SendMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	id := pgUUID(uuid.New())
	var msg model.Message
	err := s.inTx(ctx, func(q *database.Queries) error {
		arg := database.CreateMessageParams{
			ID:             id,
			ConversationID: pgUUID(in.ConversationID),
			SenderID:       pgUUID(in.SenderID),
			Content:        in.Content,
			Type:           string(in.Type),
		}
		if in.ReplyTo != nil {
			arg.ReplyToID = pgUUID(*in.ReplyTo)
		}
		if _, err := q.CreateMessage(ctx, arg); err != nil {
			return fmt.Errorf("store: create message: %w", err)
		}

		n, err := q.SetLastMessage(ctx, database.SetLastMessageParams{ID: arg.ConversationID, LastMessageID: id})
		if err != nil {
			return fmt.Errorf("store: set last message: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}

		if _, err := q.IncrementUnread(ctx, database.IncrementUnreadParams{
			ConversationID: arg.ConversationID,
			SenderID:       arg.SenderID,
		}); err != nil {
			return fmt.Errorf("store: increment unread: %w", err)
		}

		row, err := q.GetMessage(ctx, id)
		if err != nil {
			return fmt.Errorf("store: read back message: %w", err)
		}
		msg = messageFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *PostgresStore) MarkViewed(ctx context.Context, conversationID, viewer uuid.UUID) error {
	return s.inTx(ctx, func(q *database.Queries) error {
		n, err := q.ResetUnread(ctx, database.ResetUnreadParams{
			ConversationID: pgUUID(conversationID),
			UserID:         pgUUID(viewer),
		})
		if err := affected(n, err, "reset unread"); err != nil {
			return err
		}
		if _, err := q.MarkMessagesRead(ctx, database.MarkMessagesReadParams{
			ConversationID: pgUUID(conversationID),
			ReaderID:       pgUUID(viewer),
		}); err != nil {
			return fmt.Errorf("store: mark messages read: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	row, err := s.q.GetMessage(ctx, pgUUID(id))
	if err != nil {
		return nil, notFound(err, "get message")
	}
	m := messageFromRow(row)
	return &m, nil
}

// ListMessages returns up to limit messages older than the cursor, oldest first.
// A zero cursor returns the most recent page.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID, before model.MessageCursor, limit int) ([]model.Message, error) {
	arg := database.ListMessagesParams{
		ConversationID: pgUUID(conversationID),
		BeforeID:       pgUUID(before.BeforeID),
		RowLimit:       int32(limit),
	}
	if !before.IsZero() {
		arg.Before = pgtype.Timestamptz{Time: before.Before, Valid: true}
	}
	rows, err := s.q.ListMessages(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}

	out := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, messageFromRow(database.GetMessageRow(row)))
	}
	slices.Reverse(out)
	return out, nil
}

func (s *PostgresStore) RecallMessage(ctx context.Context, id, sender uuid.UUID) (*model.Message, bool, error) {
	_, err := s.q.RecallMessage(ctx, database.RecallMessageParams{
		ID:       pgUUID(id),
		SenderID: pgUUID(sender),
		Content:  model.RevokedContent,
	})
	changed := true
	if errors.Is(err, pgx.ErrNoRows) {
		changed = false
	} else if err != nil {
		return nil, false, fmt.Errorf("store: recall message: %w", err)
	}

	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, changed, nil
}

func (s *PostgresStore) SetReaction(ctx context.Context, id uuid.UUID, reaction *string) (*model.Message, error) {
	arg := database.SetReactionParams{ID: pgUUID(id)}
	if reaction != nil {
		arg.Reaction = pgtype.Text{String: *reaction, Valid: true}
	}
	if _, err := s.q.SetReaction(ctx, arg); err != nil {
		return nil, notFound(err, "set reaction")
	}
	return s.GetMessage(ctx, id)
}

func (s *PostgresStore) FinishGameInvite(ctx context.Context, id uuid.UUID, summary string) (*model.Message, bool, error) {
	_, err := s.q.FinishGameInvite(ctx, database.FinishGameInviteParams{ID: pgUUID(id), Content: summary})
	changed := true
	if errors.Is(err, pgx.ErrNoRows) {
		changed = false
	} else if err != nil {
		return nil, false, fmt.Errorf("store: finish game invite: %w", err)
	}

	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, changed, nil
}

func messageFromRow(row database.GetMessageRow) model.Message {
	m := model.Message{
		ID:             uuid.UUID(row.ID.Bytes),
		ConversationID: uuid.UUID(row.ConversationID.Bytes),
		Sender: model.Profile{
			ID:          uuid.UUID(row.SenderID.Bytes),
			DisplayName: row.SenderDisplayName,
			AvatarURL:   row.SenderAvatarUrl,
		},
		Content:    row.Content,
		Type:       model.MessageType(row.Type),
		IsRead:     row.IsRead,
		IsRecalled: row.IsRecalled,
		CreatedAt:  row.CreatedAt.Time,
		UpdatedAt:  row.UpdatedAt.Time,
	}
	if row.Reaction.Valid {
		r := row.Reaction.String
		m.Reaction = &r
	}
	if row.ReplyToID.Valid {
		m.ReplyTo = &model.ReplyPreview{
			ID:      uuid.UUID(row.ReplyToID.Bytes),
			Content: row.ReplyContent.String,
			Type:    model.MessageType(row.ReplyType.String),
			Sender: model.Profile{
				ID:          uuid.UUID(row.ReplySenderID.Bytes),
				DisplayName: row.ReplySenderDisplayName.String,
				AvatarURL:   row.ReplySenderAvatarUrl.String,
			},
		}
	}
	return m
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

func affected(n int64, err error, op string) error {
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
