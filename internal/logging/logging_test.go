package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"presencelight/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" Debug ", slog.LevelDebug},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "json", Level: slog.LevelInfo, Output: &buf})

	logger.Debug("hidden")
	logger.Info("light switched", "on", true)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "light switched", entry["msg"])
	assert.Equal(t, true, entry["on"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "time")
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "text", Level: slog.LevelDebug, Output: &buf})

	logger.Debug("current presence", "activity", "InACall")
	assert.Contains(t, buf.String(), "timestamp=")
	assert.Contains(t, buf.String(), "activity=InACall")
}

func TestNewLogger_ServiceAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "json", Level: slog.LevelInfo, Output: &buf, Service: "presencelight"})

	logger.Info("token acquired", "token", "eyJ-secret", "Password", "hunter2", "lifetime", "1h0m0s")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "presencelight", entry["service"])
	assert.Equal(t, "[redacted]", entry["token"])
	assert.Equal(t, "[redacted]", entry["Password"])
	assert.Equal(t, "1h0m0s", entry["lifetime"])
	assert.NotContains(t, buf.String(), "eyJ-secret")
	assert.NotContains(t, buf.String(), "hunter2")
}

type stubPresence struct {
	status core.PresenceStatus
	err    error
}

func (s stubPresence) GetPresence(ctx context.Context, token string) (core.PresenceStatus, error) {
	return s.status, s.err
}

type stubLight struct{ err error }

func (s stubLight) SetOn(ctx context.Context, on bool) error { return s.err }

type stubCreds struct {
	cred core.Credential
	err  error
}

func (s stubCreds) GetToken(ctx context.Context) (core.Credential, error) { return s.cred, s.err }

func TestDecorators_PassThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Format: "json", Level: slog.LevelDebug, Output: &buf})
	ctx := context.Background()

	want := core.PresenceStatus{Availability: "Busy", Activity: "InACall"}
	status, err := NewPresenceClientLogger(stubPresence{status: want}, logger).GetPresence(ctx, "secret-token")
	require.NoError(t, err)
	assert.Equal(t, want, status)

	presenceErr := core.PresenceUnavailable("request", errors.New("reset"))
	_, err = NewPresenceClientLogger(stubPresence{err: presenceErr}, logger).GetPresence(ctx, "secret-token")
	assert.ErrorIs(t, err, core.ErrPresenceUnavailable)

	assert.NoError(t, NewLightControllerLogger(stubLight{}, logger).SetOn(ctx, true))
	lightErr := core.LightCommandFailure("send", errors.New("refused"))
	assert.ErrorIs(t, NewLightControllerLogger(stubLight{err: lightErr}, logger).SetOn(ctx, false), core.ErrLightCommand)

	cred, err := NewCredentialProviderLogger(stubCreds{cred: core.Credential{Token: "secret-token", TTL: time.Hour}}, logger).GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cred.Token)

	assert.Contains(t, buf.String(), "SetOn failed")
	assert.Contains(t, buf.String(), "GetToken completed")
	assert.NotContains(t, buf.String(), "secret-token")
}
