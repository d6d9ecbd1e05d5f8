package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/metrics"
	"github.com/facenoel/chatter/internal/model"
)

const emitTimeout = 5 * time.Second

// Fanout emits event to every live connection of every participant of the
// conversation. A missing conversation is reported as ErrNotFound and
// nothing is emitted.
func (s *Service) Fanout(ctx context.Context, conversationID uuid.UUID, event string, payload any) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return storeError(err, "conversation")
	}
	s.fanout(ctx, conv, event, payload)
	return nil
}

func (s *Service) fanout(ctx context.Context, conv *model.Conversation, event string, payload any) {
	s.emit(ctx, model.Envelope{Event: event, Users: conv.ParticipantIDs()}, payload)
}

func (s *Service) toUsers(ctx context.Context, event string, payload any, users ...uuid.UUID) {
	s.emit(ctx, model.Envelope{Event: event, Users: users}, payload)
}

func (s *Service) toRoom(ctx context.Context, roomID, excludeConn, event string, payload any) {
	s.emit(ctx, model.Envelope{Event: event, Room: roomID, ExcludeConn: excludeConn}, payload)
}

func (s *Service) broadcast(ctx context.Context, excludeConn, event string, payload any) {
	s.emit(ctx, model.Envelope{Event: event, Broadcast: true, ExcludeConn: excludeConn}, payload)
}

// emit publishes env after the durable write it reports has committed.
// Failures are logged and never surface to the caller; the emission outlives
// the caller's context.
func (s *Service) emit(ctx context.Context, env model.Envelope, payload any) {
	if raw, ok := payload.(json.RawMessage); ok {
		env.Payload = raw
	} else {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error().Err(err).Str("event", env.Event).Msg("could not encode payload")
			metrics.EmitFailures.Inc()
			return
		}
		env.Payload = data
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	if err := s.bus.Publish(ctx, env); err != nil {
		s.logger.Error().Err(err).Str("event", env.Event).Msg("could not publish envelope")
		metrics.EmitFailures.Inc()
		return
	}
	metrics.EventsEmitted.WithLabelValues(env.Event).Inc()
}
