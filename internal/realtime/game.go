package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/facenoel/chatter/internal/metrics"
	"github.com/facenoel/chatter/internal/model"
)

var gameNames = map[string]string{
	"caro":  "Caro",
	"chess": "Cờ Vua",
	"snake": "Rắn Săn Mồi",
}

// GameSummary is the text an invite message is rewritten to once its game ends.
func GameSummary(gameType string) string {
	name, ok := gameNames[gameKey(gameType)]
	if !ok {
		name = "Game"
	}
	return "🎮 Ván " + name + " đã kết thúc."
}

func gameKey(gameType string) string {
	return strings.ToLower(strings.TrimSpace(gameType))
}

// roomTag reduces a client supplied game type to a safe room id component.
func roomTag(gameType string) string {
	var b strings.Builder
	for _, r := range gameKey(gameType) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "game"
	}
	return b.String()
}

func metricGameType(gameType string) string {
	if _, ok := gameNames[gameKey(gameType)]; ok {
		return gameKey(gameType)
	}
	return "other"
}

// SendGameInvite posts a game invite into the conversation between actor and
// the receiver, creating the conversation if needed. It follows the ordinary
// send path: unread bump and new_message fanout.
func (s *Service) SendGameInvite(ctx context.Context, actor uuid.UUID, in GameInviteInput) (*model.Message, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	conv, err := s.OpenConversation(ctx, actor, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	return s.send(ctx, conv, model.NewMessage{
		ConversationID: conv.ID,
		SenderID:       actor,
		Content:        gameKey(in.GameType),
		Type:           model.TypeGameInvite,
	})
}

// AcceptGameInvite allocates a fresh room and sends game_started to exactly
// the host and the guest. The room is never stored; both clients echo it back.
func (s *Service) AcceptGameInvite(ctx context.Context, actor uuid.UUID, in GameAcceptInput) (model.GameRoom, error) {
	if err := s.Validate(in); err != nil {
		return model.GameRoom{}, err
	}
	if actor != in.SenderID && actor != in.ReceiverID {
		return model.GameRoom{}, fmt.Errorf("%w: not a party to this invite", ErrForbidden)
	}

	invite, err := s.store.GetMessage(ctx, in.MessageID)
	if err != nil {
		return model.GameRoom{}, storeError(err, "invite message")
	}
	if invite.Type != model.TypeGameInvite {
		return model.GameRoom{}, fmt.Errorf("%w: message is not an open game invite", ErrValidation)
	}
	conv, err := s.store.GetConversation(ctx, invite.ConversationID)
	if err != nil {
		return model.GameRoom{}, storeError(err, "conversation")
	}
	if !conv.HasParticipant(in.SenderID) || !conv.HasParticipant(in.ReceiverID) {
		return model.GameRoom{}, fmt.Errorf("%w: invite belongs to another conversation", ErrValidation)
	}

	room := model.GameRoom{
		RoomID:          s.roomID(roomTag(in.GameType)),
		GameType:        gameKey(in.GameType),
		HostID:          in.SenderID,
		GuestID:         in.ReceiverID,
		InviteMessageID: in.MessageID,
	}

	metrics.GamesStarted.WithLabelValues(metricGameType(in.GameType)).Inc()
	s.toUsers(ctx, EventGameStarted, room, room.HostID, room.GuestID)
	return room, nil
}

// JoinGameRoom puts the connection in roomID. A connection holds one room at
// a time; the room it leaves hears opponent_left.
func (s *Service) JoinGameRoom(ctx context.Context, connID string, in RoomRef) error {
	if err := s.Validate(in); err != nil {
		return err
	}
	sess, err := s.joined(connID)
	if err != nil {
		return err
	}

	previous, err := s.sessions.EnterRoom(connID, in.RoomID)
	if err != nil {
		return err
	}
	if previous != "" && previous != in.RoomID {
		s.toRoom(ctx, previous, connID, EventOpponentLeft, OpponentLeftPayload{RoomID: previous, UserID: sess.Identity})
	}
	return nil
}

// LeaveGameRoom removes the connection from roomID and tells whoever remains.
func (s *Service) LeaveGameRoom(ctx context.Context, connID string, in RoomRef) error {
	if err := s.Validate(in); err != nil {
		return err
	}
	sess, err := s.joined(connID)
	if err != nil {
		return err
	}

	if s.sessions.ExitRoom(connID, in.RoomID) {
		s.toRoom(ctx, in.RoomID, connID, EventOpponentLeft, OpponentLeftPayload{RoomID: in.RoomID, UserID: sess.Identity})
	}
	return nil
}

type movePayload struct {
	RoomID   string          `json:"roomId"`
	Dir      json.RawMessage `json:"dir"`
	MoveData json.RawMessage `json:"moveData"`
}

// RelayMove forwards a move to every other connection in the room. Payloads
// carrying a dir key are continuous inputs and go out as opponent_input with
// the whole payload; the rest go out as opponent_move with moveData, or the
// whole payload when moveData is absent.
func (s *Service) RelayMove(ctx context.Context, connID string, data json.RawMessage) error {
	var p movePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: malformed move", ErrValidation)
	}
	if err := s.inRoom(connID, p.RoomID); err != nil {
		return err
	}

	switch {
	case len(p.Dir) > 0:
		s.toRoom(ctx, p.RoomID, connID, EventOpponentInput, data)
	case len(p.MoveData) > 0 && string(p.MoveData) != "null":
		s.toRoom(ctx, p.RoomID, connID, EventOpponentMove, p.MoveData)
	default:
		s.toRoom(ctx, p.RoomID, connID, EventOpponentMove, data)
	}
	return nil
}

// RelayState forwards a full game-state snapshot to the rest of the room.
func (s *Service) RelayState(ctx context.Context, connID string, data json.RawMessage) error {
	roomID, err := roomOf(data)
	if err != nil {
		return err
	}
	if err := s.inRoom(connID, roomID); err != nil {
		return err
	}
	s.toRoom(ctx, roomID, connID, EventGameStateUpdate, data)
	return nil
}

// SignalGameOver tells the whole room, sender included, that play has stopped.
func (s *Service) SignalGameOver(ctx context.Context, connID string, data json.RawMessage) error {
	roomID, err := roomOf(data)
	if err != nil {
		return err
	}
	if err := s.inRoom(connID, roomID); err != nil {
		return err
	}
	s.toRoom(ctx, roomID, "", EventGameOver, data)
	return nil
}

// FinishGame rewrites the invite message into a plain-text summary. Only the
// first call rewrites and emits; later calls return the current message.
// Naming a room requires connID to be in it.
func (s *Service) FinishGame(ctx context.Context, connID string, actor uuid.UUID, in GameFinishInput) (*model.Message, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}
	if in.RoomID != "" {
		if err := s.inRoom(connID, in.RoomID); err != nil {
			return nil, err
		}
	}

	invite, err := s.store.GetMessage(ctx, in.MessageID)
	if err != nil {
		return nil, storeError(err, "invite message")
	}
	conv, err := s.participantConversation(ctx, actor, invite.ConversationID)
	if err != nil {
		return nil, err
	}

	gameType := in.GameType
	if gameType == "" && invite.Type == model.TypeGameInvite {
		gameType = invite.Content
	}

	msg, changed, err := s.store.FinishGameInvite(ctx, in.MessageID, GameSummary(gameType))
	if err != nil {
		return nil, storeError(err, "finish game")
	}
	if !changed {
		return msg, nil
	}

	s.fanout(ctx, conv, EventMessageUpdated, msg)
	if in.RoomID != "" {
		s.toRoom(ctx, in.RoomID, "", EventUpdateMessage, msg)
	}
	return msg, nil
}

func (s *Service) inRoom(connID, roomID string) error {
	sess, err := s.joined(connID)
	if err != nil {
		return err
	}
	if roomID == "" || sess.Room != roomID {
		return fmt.Errorf("%w: connection is not in room %q", ErrForbidden, roomID)
	}
	return nil
}

func roomOf(data json.RawMessage) (string, error) {
	var ref struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return "", fmt.Errorf("%w: malformed game payload", ErrValidation)
	}
	return ref.RoomID, nil
}
