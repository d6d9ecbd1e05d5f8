package realtime

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/store"
)

// Join binds identity to the connection, marks the identity online and tells
// every other connection. Joining twice on the same connection is a no-op.
func (s *Service) Join(ctx context.Context, connID string, identity uuid.UUID) error {
	fresh, err := s.sessions.Bind(connID, identity)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	if _, err := s.tracker.Connect(ctx, identity); err != nil {
		s.logger.Warn().Err(err).Str("user_id", identity.String()).Msg("could not count connection")
	}

	p := model.Presence{UserID: identity, IsOnline: true}
	if err := s.store.SetPresence(ctx, p); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn().Err(err).Str("user_id", identity.String()).Msg("could not persist presence")
	}

	s.broadcast(ctx, connID, EventUserStatus, p)
	s.logger.Debug().Str("conn_id", connID).Str("user_id", identity.String()).Msg("joined")
	return nil
}

// Leave runs when a connection closes. sess is the registry's last view of
// the connection. The identity stays online while other connections remain.
func (s *Service) Leave(ctx context.Context, sess model.ConnectionSession) {
	if sess.Room != "" {
		s.toRoom(ctx, sess.Room, sess.ConnID, EventOpponentLeft, OpponentLeftPayload{RoomID: sess.Room, UserID: sess.Identity})
	}
	if !sess.Joined {
		return
	}

	remaining, err := s.tracker.Disconnect(ctx, sess.Identity)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", sess.Identity.String()).Msg("could not count disconnect")
	}

	now := s.now().UTC()
	p := model.Presence{UserID: sess.Identity, IsOnline: remaining > 0, LastActive: &now}
	if err := s.store.SetPresence(ctx, p); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn().Err(err).Str("user_id", sess.Identity.String()).Msg("could not persist presence")
	}

	s.broadcast(ctx, sess.ConnID, EventUserStatus, p)
	s.logger.Debug().Str("conn_id", sess.ConnID).Str("user_id", sess.Identity.String()).Msg("left")
}

// joined returns the identity bound to connID or ErrNotJoined.
func (s *Service) joined(connID string) (model.ConnectionSession, error) {
	sess, ok := s.sessions.Session(connID)
	if !ok || !sess.Joined {
		return model.ConnectionSession{}, ErrNotJoined
	}
	return sess, nil
}
