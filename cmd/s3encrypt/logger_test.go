package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3encrypt/internal/config"
	"s3encrypt/internal/types"
)

func TestNewLoggerFormat(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		format   string
		wantJSON bool
	}{
		{"prod defaults to json", "prod", "", true},
		{"local defaults to text", "local", "", false},
		{"explicit text in prod", "prod", "text", false},
		{"explicit json locally", "local", "json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&config.Config{Environment: tt.env, LogLevel: "info", LogFormat: tt.format}, &buf)

			logger.Info("hello")

			assert.Equal(t, tt.wantJSON, json.Valid(bytes.TrimSpace(buf.Bytes())), buf.String())
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&config.Config{Environment: "prod", LogLevel: "warn"}, &buf)

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&config.Config{Environment: "prod", LogLevel: "info"}, &buf)

	logger.Info("loaded",
		"secrets", types.SecretMap{"user1": "pw1"},
		"context", types.SecretString("ctx1"),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, buf.String(), "pw1")
	assert.NotContains(t, buf.String(), "ctx1")
	assert.Equal(t, map[string]any{"count": float64(1), "keys": []any{"user1"}}, entry["secrets"])
}
