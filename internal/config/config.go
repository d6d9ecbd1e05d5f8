// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server.
type Config struct {
	Port string
	Env  string

	DatabaseURL string
	RedisURL    string

	NATSURL      string
	NATSCred     string
	NATSUser     string
	NATSPassword string

	JWTSecret string
	JWTIssuer string

	AllowedOrigins []string

	// DevUsers seeds the in-memory store as "uuid:Display Name" entries.
	DevUsers []string

	// Call signaling hardening. Off by default: the relay is a pure pass-through.
	CallGuardEnabled bool
	CallInviteTTL    time.Duration

	// Per-connection event budgets.
	WSMessageRate   int
	WSMessageWindow time.Duration
	WSGameRate      int
	WSGameWindow    time.Duration

	// Per-IP HTTP budget.
	HTTPRate   int
	HTTPWindow time.Duration
}

// Load reads configuration from environment variables. A .env file is
// honoured when present. In production missing required values panic.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DB_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		NATSURL:          os.Getenv("NATS_URL"),
		NATSCred:         os.Getenv("NATS_CRED"),
		NATSUser:         os.Getenv("NATS_USER"),
		NATSPassword:     os.Getenv("NATS_PASSWORD"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTIssuer:        os.Getenv("JWT_ISS"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
		DevUsers:         splitList(os.Getenv("DEV_USERS")),
		CallGuardEnabled: getEnv("CALL_GUARD_ENABLED", "false") == "true",
		CallInviteTTL:    getDuration("CALL_INVITE_TTL", 45*time.Second),
		WSMessageRate:    getInt("WS_MESSAGE_RATE", 30),
		WSMessageWindow:  time.Minute,
		WSGameRate:       getInt("WS_GAME_RATE", 40),
		WSGameWindow:     time.Second,
		HTTPRate:         getInt("HTTP_RATE", 120),
		HTTPWindow:       time.Minute,
	}

	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DB_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			panic("JWT_SECRET is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
