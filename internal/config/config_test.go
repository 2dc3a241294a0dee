package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "chat", cfg.NotifyTopic)
	assert.False(t, cfg.RejectInvalidSubmissions)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.JournalPath)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("HISTORY_CAPACITY", "20")
	t.Setenv("REJECT_INVALID_SUBMISSIONS", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("COMPACTION_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 20, cfg.HistoryCapacity)
	assert.True(t, cfg.RejectInvalidSubmissions)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, time.Minute, cfg.CompactionInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"zero capacity", "HISTORY_CAPACITY", "0"},
		{"client buffer too small", "CLIENT_BUFFER_SIZE", "2"},
		{"not a number", "SUBMIT_BURST", "lots"},
		{"bad redis url", "REDIS_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
