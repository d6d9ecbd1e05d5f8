package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Signal relays a call-signaling event from actor to the identity named in
// the payload's "to" field. The payload is forwarded untouched except that
// "from" is stamped with the actor.
//
// With a call guard configured, call_invite reserves both parties and fails
// with ErrBusy when either is already in a call; call_accepted extends the
// reservation and the closing events release it.
func (s *Service) Signal(ctx context.Context, actor uuid.UUID, event string, data json.RawMessage) error {
	if !IsCallEvent(event) {
		return fmt.Errorf("%w: %q is not a call event", ErrValidation, event)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return fmt.Errorf("%w: malformed call payload", ErrValidation)
	}
	var sig CallSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return fmt.Errorf("%w: malformed call payload", ErrValidation)
	}
	if err := s.Validate(sig); err != nil {
		return err
	}
	if sig.To == actor {
		return fmt.Errorf("%w: cannot call yourself", ErrValidation)
	}

	if s.guard != nil {
		if err := s.guardCall(ctx, actor, sig.To, event); err != nil {
			return err
		}
	}

	from, _ := json.Marshal(actor)
	fields["from"] = from
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.toUsers(ctx, event, json.RawMessage(payload), sig.To)
	return nil
}

func (s *Service) guardCall(ctx context.Context, actor, peer uuid.UUID, event string) error {
	var err error
	switch event {
	case EventCallInvite:
		var ok bool
		ok, err = s.guard.Reserve(ctx, actor, peer)
		if err == nil && !ok {
			return ErrBusy
		}
	case EventCallAccepted:
		err = s.guard.Extend(ctx, actor, peer)
	default:
		err = s.guard.Release(ctx, actor, peer)
	}
	if err != nil {
		return fmt.Errorf("%w: call guard: %v", ErrStorage, err)
	}
	return nil
}
