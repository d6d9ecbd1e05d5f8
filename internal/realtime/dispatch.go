package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/model"
)

// Dispatch runs one inbound socket frame for the connection connID whose
// authenticated identity is identity. Every event but join requires a prior join.
func (s *Service) Dispatch(ctx context.Context, connID string, identity uuid.UUID, frame model.Frame) error {
	if frame.Event == EventJoin {
		var p JoinPayload
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		if p.UserID != nil && *p.UserID != identity {
			return fmt.Errorf("%w: cannot join as another user", ErrForbidden)
		}
		return s.Join(ctx, connID, identity)
	}

	sess, err := s.joined(connID)
	if err != nil {
		return err
	}
	actor := sess.Identity

	switch frame.Event {
	case EventMarkRead:
		var p ConversationRef
		if err := s.decodeValid(frame.Data, &p); err != nil {
			return err
		}
		return s.MarkRead(ctx, actor, p.ConversationID)

	case EventSendMessage:
		var p SendMessageInput
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		_, err := s.SendMessage(ctx, actor, p)
		return err

	case EventRecallMessage:
		var p MessageRef
		if err := s.decodeValid(frame.Data, &p); err != nil {
			return err
		}
		_, err := s.RecallMessage(ctx, actor, p.MessageID)
		return err

	case EventReactMessage:
		var p ReactInput
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		_, err := s.ReactMessage(ctx, actor, p)
		return err

	case EventSendGameInvite:
		var p GameInviteInput
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		_, err := s.SendGameInvite(ctx, actor, p)
		return err

	case EventAcceptGameInvite:
		var p GameAcceptInput
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		_, err := s.AcceptGameInvite(ctx, actor, p)
		return err

	case EventJoinGameRoom:
		var p RoomRef
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		return s.JoinGameRoom(ctx, connID, p)

	case EventLeaveGameRoom:
		var p RoomRef
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		return s.LeaveGameRoom(ctx, connID, p)

	case EventMakeGameMove:
		return s.RelayMove(ctx, connID, frame.Data)

	case EventUpdateGameState:
		return s.RelayState(ctx, connID, frame.Data)

	case EventGameOverSignal:
		return s.SignalGameOver(ctx, connID, frame.Data)

	case EventGameFinished:
		var p GameFinishInput
		if err := decode(frame.Data, &p); err != nil {
			return err
		}
		_, err := s.FinishGame(ctx, connID, actor, p)
		return err

	case EventCallInvite, EventCallAccepted, EventCallRejected, EventCallCancelled, EventCallEnded:
		return s.Signal(ctx, actor, frame.Event, frame.Data)
	}

	return fmt.Errorf("%w: unknown event %q", ErrValidation, frame.Event)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed payload", ErrValidation)
	}
	return nil
}

func (s *Service) decodeValid(data json.RawMessage, v any) error {
	if err := decode(data, v); err != nil {
		return err
	}
	return s.Validate(v)
}
