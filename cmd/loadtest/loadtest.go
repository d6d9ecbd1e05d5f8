// Command loadtest drives a running server with paired websocket clients.
// Every pair opens its conversation over REST, joins, and then both sides
// send messages at a fixed interval while counting what they receive.
//
// The users come from DEV_USERS and tokens are minted with JWT_SECRET, so
// run it with the same environment as the server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/facenoel/chatter/internal/auth"
	"github.com/facenoel/chatter/internal/config"
	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/realtime"
)

type stats struct {
	sent     atomic.Int64
	received atomic.Int64
	errors   atomic.Int64
}

type user struct {
	id    uuid.UUID
	token string
}

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "server base URL")
		messages = flag.Int("messages", 20, "messages per client")
		interval = flag.Duration("interval", 200*time.Millisecond, "delay between sends")
		drain    = flag.Duration("drain", 3*time.Second, "how long to keep reading after the last send")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cfg := config.Load()

	users, err := mintUsers(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot prepare users")
	}
	if len(users) < 2 {
		logger.Fatal().Msg("DEV_USERS needs at least two entries")
	}

	var st stats
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())

	for i := 0; i+1 < len(users); i += 2 {
		a, b := users[i], users[i+1]
		g.Go(func() error {
			convID, err := openConversation(ctx, *baseURL, a, b.id)
			if err != nil {
				return err
			}

			pg, pctx := errgroup.WithContext(ctx)
			for _, u := range []user{a, b} {
				pg.Go(func() error {
					return runClient(pctx, *baseURL, u, convID, *messages, *interval, *drain, &st, logger)
				})
			}
			return pg.Wait()
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("load test aborted")
	}

	elapsed := time.Since(start)
	logger.Info().
		Int("clients", len(users)/2*2).
		Int64("sent", st.sent.Load()).
		Int64("received", st.received.Load()).
		Int64("errors", st.errors.Load()).
		Dur("elapsed", elapsed).
		Float64("sent_per_sec", float64(st.sent.Load())/elapsed.Seconds()).
		Msg("load test finished")
}

func mintUsers(cfg *config.Config) ([]user, error) {
	var out []user
	for _, e := range cfg.DevUsers {
		rawID, _, _ := strings.Cut(e, ":")
		id, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			return nil, fmt.Errorf("DEV_USERS entry %q: %w", e, err)
		}
		tok, err := auth.MakeJWT(id, cfg.JWTSecret, cfg.JWTIssuer, time.Hour)
		if err != nil {
			return nil, err
		}
		out = append(out, user{id: id, token: tok})
	}
	return out, nil
}

func openConversation(ctx context.Context, baseURL string, from user, to uuid.UUID) (uuid.UUID, error) {
	body, _ := json.Marshal(map[string]uuid.UUID{"targetId": to})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/conversations", bytes.NewReader(body))
	if err != nil {
		return uuid.UUID{}, err
	}
	req.Header.Set("Authorization", "Bearer "+from.token)
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("open conversation: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return uuid.UUID{}, fmt.Errorf("open conversation: status %d", res.StatusCode)
	}

	var conv model.Conversation
	if err := json.NewDecoder(res.Body).Decode(&conv); err != nil {
		return uuid.UUID{}, err
	}
	return conv.ID, nil
}

func runClient(ctx context.Context, baseURL string, u user, convID uuid.UUID, messages int, interval, drain time.Duration, st *stats, logger zerolog.Logger) error {
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws?token=" + u.token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.id, err)
	}
	defer conn.CloseNow()

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	go func() {
		for {
			var f model.Frame
			if err := wsjson.Read(readCtx, conn, &f); err != nil {
				return
			}
			switch f.Event {
			case realtime.EventNewMessage:
				st.received.Add(1)
			case realtime.EventError:
				st.errors.Add(1)
				logger.Warn().RawJSON("data", f.Data).Str("user_id", u.id.String()).Msg("server error frame")
			}
		}
	}()

	if err := write(ctx, conn, realtime.EventJoin, realtime.JoinPayload{UserID: &u.id}); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := range messages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		err := write(ctx, conn, realtime.EventSendMessage, realtime.SendMessageInput{
			ConversationID: convID,
			Content:        fmt.Sprintf("load message %d from %s", i, u.id.String()[:8]),
		})
		if err != nil {
			return err
		}
		st.sent.Add(1)
	}

	select {
	case <-ctx.Done():
	case <-time.After(drain):
	}
	return conn.Close(websocket.StatusNormalClosure, "done")
}

func write(ctx context.Context, conn *websocket.Conn, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(wctx, conn, model.Frame{Event: event, Data: data})
}
