// Package realtime implements the messaging and presence core: session
// join/leave, conversation fanout, unread bookkeeping, the message
// send/recall/react protocol, game pairing and call signaling.
//
// Every operation commits its durable mutation before any emission.
// Emissions travel as envelopes over a broker.Bus; each process's session
// registry resolves the envelope's targets to its own live connections.
package realtime

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/broker"
	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/presence"
	"github.com/facenoel/chatter/internal/store"
)

// Sessions is the process-local session registry the core consults for
// per-connection state.
type Sessions interface {
	// Bind records identity on the connection. It reports false when the
	// connection had already joined.
	Bind(connID string, identity uuid.UUID) (bool, error)
	Session(connID string) (model.ConnectionSession, bool)
	// EnterRoom places the connection in roomID and returns the room it left, if any.
	EnterRoom(connID, roomID string) (string, error)
	// ExitRoom removes the connection from roomID. It reports false when the
	// connection was not in that room.
	ExitRoom(connID, roomID string) bool
}

type Options struct {
	Store    store.Store
	Bus      broker.Bus
	Sessions Sessions
	Tracker  presence.Tracker
	// CallGuard is nil when call signaling runs as a pure relay.
	CallGuard presence.CallGuard
	Logger    zerolog.Logger
}

type Service struct {
	store     store.Store
	bus       broker.Bus
	sessions  Sessions
	tracker   presence.Tracker
	guard     presence.CallGuard
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger

	now    func() time.Time
	roomID func(gameType string) string
}

func NewService(opts Options) *Service {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Service{
		store:     opts.Store,
		bus:       opts.Bus,
		sessions:  opts.Sessions,
		tracker:   opts.Tracker,
		guard:     opts.CallGuard,
		validate:  validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    opts.Logger.With().Str("component", "realtime").Logger(),
		now:       time.Now,
		roomID:    newRoomID,
	}
}

// Validate checks v against its validate tags.
func (s *Service) Validate(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func newRoomID(gameType string) string {
	return "room_" + gameType + "_" + ulid.Make().String()
}
