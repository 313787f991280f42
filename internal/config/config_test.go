package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"LISTEN_ADDR", "ALLOWED_ORIGINS", "POSTGRES_URL", "LOG_LEVEL", "LOG_PRETTY",
	"ROOM_TTL", "USER_TTL", "SWEEP_INTERVAL", "TOPIC_OPTIONS", "AVATAR_DIR", "IDENTITY_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://ito.example ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "https://ito.example"}, cfg.AllowedOrigins)
	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, time.Hour, cfg.RoomTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.UserTTL)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 3, cfg.TopicOptions)
	assert.Empty(t, cfg.PostgresURL)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("ROOM_TTL", "90m")
	t.Setenv("TOPIC_OPTIONS", "5")
	t.Setenv("POSTGRES_URL", "postgres://ito@db/ito")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 90*time.Minute, cfg.RoomTTL)
	assert.Equal(t, 5, cfg.TopicOptions)
	assert.Equal(t, "postgres://ito@db/ito", cfg.PostgresURL)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"missing origins", map[string]string{}},
		{"bad bool", map[string]string{"ALLOWED_ORIGINS": "*", "LOG_PRETTY": "sometimes"}},
		{"bad duration", map[string]string{"ALLOWED_ORIGINS": "*", "ROOM_TTL": "an hour"}},
		{"bad int", map[string]string{"ALLOWED_ORIGINS": "*", "TOPIC_OPTIONS": "three"}},
		{"no topic options", map[string]string{"ALLOWED_ORIGINS": "*", "TOPIC_OPTIONS": "0"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}

	t.Run("missing origins is a missing env", func(t *testing.T) {
		clearEnv(t)
		_, err := Load()
		assert.ErrorIs(t, err, ErrMissingEnv)
	})
}
