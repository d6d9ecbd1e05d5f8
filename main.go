// Package main our entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/facenoel/chatter/internal/auth"
	"github.com/facenoel/chatter/internal/broker"
	"github.com/facenoel/chatter/internal/config"
	"github.com/facenoel/chatter/internal/handler"
	"github.com/facenoel/chatter/internal/model"
	"github.com/facenoel/chatter/internal/presence"
	ratelimiter "github.com/facenoel/chatter/internal/rate_limiter"
	"github.com/facenoel/chatter/internal/realtime"
	"github.com/facenoel/chatter/internal/store"
	ws "github.com/facenoel/chatter/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	// Cancelled on shutdown; every websocket derives from it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info().Str("env", cfg.Env).Msg("starting application")

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-only-secret"
		logger.Warn().Msg("JWT_SECRET is not set; using an insecure development secret")
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = presence.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}
	tracker, guard := openPresence(cfg, rdb, logger)

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = connectNATS(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
	}
	bus, err := openBus(ctx, nc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open event bus")
	}

	// hub.Run is our central hub that is always listening for bus envelopes.
	hub := ws.NewHub(logger)
	envelopes, err := bus.Subscribe(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to event bus")
	}
	go hub.Run(ctx, envelopes)

	svc := realtime.NewService(realtime.Options{
		Store:     st,
		Bus:       bus,
		Sessions:  hub,
		Tracker:   tracker,
		CallGuard: guard,
		Logger:    logger,
	})

	limiter := ratelimiter.NewIPRateLimiter(cfg.HTTPRate, cfg.HTTPWindow, ratelimiter.CleanupOpts{
		TTL:      10 * time.Minute,
		Interval: time.Minute,
	}, logger)

	checks := map[string]handler.Check{"store": st.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if nc != nil {
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		}
	}

	server := &http.Server{
		Addr: "0.0.0.0:" + cfg.Port,
		Handler: handler.NewRouter(handler.Deps{
			Config:   cfg,
			Service:  svc,
			Hub:      hub,
			Profiles: auth.NewProfileResolver(st),
			Limiter:  limiter,
			Checks:   checks,
			Logger:   logger,
		}),
		// Read and write timeouts would also apply to hijacked websocket
		// connections; the REST routes carry their own timeout middleware.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"chatter": func(sctx context.Context) error {
				logger.Info().Msg("shutdown signal received; shutting down...")

				var errs []error
				if err := server.Shutdown(sctx); err != nil {
					errs = append(errs, fmt.Errorf("http server: %w", err))
				}

				// Close websockets and stop the hub. Give connections a
				// moment to run their leave path before the stores go away.
				cancel()
				time.Sleep(500 * time.Millisecond)
				limiter.Cancel()

				if nc != nil {
					if err := nc.Drain(); err != nil {
						errs = append(errs, fmt.Errorf("nats drain: %w", err))
					}
				}
				if rdb != nil {
					if err := rdb.Close(); err != nil {
						errs = append(errs, fmt.Errorf("redis: %w", err))
					}
				}
				st.Close()

				return errors.Join(errs...)
			},
		},
	)

	exitCode := <-wait
	logger.Info().Int("exit_code", exitCode).Msg("server stopped")
	os.Exit(exitCode)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Caller().Logger()
	}
	return zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}

// openStore connects to Postgres and migrates it, or falls back to the
// in-memory store seeded with DEV_USERS when DB_URL is empty.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		mem := store.NewMemoryStore()
		for _, p := range parseDevUsers(cfg.DevUsers, logger) {
			mem.PutUser(p)
		}
		logger.Warn().Int("users", len(cfg.DevUsers)).Msg("DB_URL is not set; using the in-memory store")
		return mem, nil
	}

	logger.Info().Msg("initializing database connection...")
	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, pg.Pool()); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, nil
}

// parseDevUsers reads "uuid:Display Name" entries.
func parseDevUsers(entries []string, logger zerolog.Logger) []model.Profile {
	var out []model.Profile
	for _, e := range entries {
		rawID, name, _ := strings.Cut(e, ":")
		id, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil {
			logger.Warn().Str("entry", e).Msg("skipping malformed DEV_USERS entry")
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = id.String()[:8]
		}
		out = append(out, model.Profile{ID: id, DisplayName: name})
	}
	return out
}

func openPresence(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (presence.Tracker, presence.CallGuard) {
	var (
		tracker presence.Tracker
		guard   presence.CallGuard
	)

	if rdb != nil {
		tracker = presence.NewRedisTracker(rdb)
		if cfg.CallGuardEnabled {
			guard = presence.NewRedisCallGuard(rdb, cfg.CallInviteTTL)
		}
		return tracker, guard
	}

	logger.Warn().Msg("REDIS_URL is not set; presence counts are process-local")
	tracker = presence.NewMemoryTracker()
	if cfg.CallGuardEnabled {
		guard = presence.NewMemoryCallGuard(cfg.CallInviteTTL)
	}
	return tracker, guard
}

func connectNATS(cfg *config.Config) (*nats.Conn, error) {
	var opts []nats.Option

	if cfg.NATSCred != "" {
		opts = append(opts, nats.UserCredentials(cfg.NATSCred))
	} else if cfg.NATSUser != "" && cfg.NATSPassword != "" {
		opts = append(opts, nats.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}

	opts = append(opts,
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)

	return nats.Connect(cfg.NATSURL, opts...)
}

func openBus(ctx context.Context, nc *nats.Conn, logger zerolog.Logger) (broker.Bus, error) {
	if nc == nil {
		logger.Warn().Msg("NATS_URL is not set; events stay in this process")
		return broker.NewLocal(), nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream instance: %w", err)
	}
	return broker.NewJetStream(ctx, js, logger)
}
