package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"HTTP_BIND", "PROVIDER_CLIENT_ID", "PROVIDER_CLIENT_SECRET",
		"PROVIDER_REDIRECT_URI", "PROVIDER_REFRESH_TOKEN", "DATABASE_URL", "CORS_ORIGIN",
		"TOKEN_EXPIRY_SKEW", "VOTES_PER_HOUR", "COOLDOWN_SECONDS",
		"SAME_TRACK_COOLDOWN_SECONDS", "IP_HOURLY_MULTIPLIER", "MAX_QUEUE_SIZE",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_CLIENT_ID", "id")
	t.Setenv("PROVIDER_CLIENT_SECRET", "secret")
	t.Setenv("PROVIDER_REDIRECT_URI", "https://example.com/callback")
	t.Setenv("PROVIDER_REFRESH_TOKEN", "refresh-token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPBind)
	assert.Equal(t, "beatline.db", cfg.DatabaseURL)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, 5*time.Minute, cfg.TokenExpirySkew)
	assert.Equal(t, 3, cfg.VotingDefaults.VotesPerHour)
	assert.Equal(t, 30, cfg.VotingDefaults.CooldownSeconds)
}

func TestLoad_MissingRequiredFieldFails(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_CLIENT_ID", "id")
	t.Setenv("PROVIDER_CLIENT_SECRET", "secret")
	t.Setenv("PROVIDER_REDIRECT_URI", "https://example.com/callback")
	t.Setenv("PROVIDER_REFRESH_TOKEN", "refresh-token")
	t.Setenv("HTTP_BIND", ":9090")
	t.Setenv("VOTES_PER_HOUR", "10")
	t.Setenv("TOKEN_EXPIRY_SKEW", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPBind)
	assert.Equal(t, 10, cfg.VotingDefaults.VotesPerHour)
	assert.Equal(t, 2*time.Minute, cfg.TokenExpirySkew)
}

func TestLoad_InvalidRedirectURIFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER_CLIENT_ID", "id")
	t.Setenv("PROVIDER_CLIENT_SECRET", "secret")
	t.Setenv("PROVIDER_REDIRECT_URI", "not-a-url")
	t.Setenv("PROVIDER_REFRESH_TOKEN", "refresh-token")

	_, err := Load()
	assert.Error(t, err)
}
