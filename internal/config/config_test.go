package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "DB_URL", "ALLOWED_ORIGINS", "CALL_GUARD_ENABLED", "CALL_INVITE_TTL", "WS_MESSAGE_RATE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.CallGuardEnabled)
	assert.Equal(t, 45*time.Second, cfg.CallInviteTTL)
	assert.Equal(t, 30, cfg.WSMessageRate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("CALL_GUARD_ENABLED", "true")
	t.Setenv("CALL_INVITE_TTL", "10s")
	t.Setenv("WS_MESSAGE_RATE", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.CallGuardEnabled)
	assert.Equal(t, 10*time.Second, cfg.CallInviteTTL)
	assert.Equal(t, 30, cfg.WSMessageRate)
}

func TestLoadProductionRequiresDatabase(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("DB_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	assert.Panics(t, func() { Load() })
}
