package logging

import (
	"context"
	"log/slog"
	"time"

	"presencelight/internal/core"
)

// PresenceClientLogger wraps a PresenceClient and logs all method calls
type PresenceClientLogger struct {
	client core.PresenceClient
	logger *slog.Logger
}

// NewPresenceClientLogger creates a new logging decorator for PresenceClient
func NewPresenceClientLogger(client core.PresenceClient, logger *slog.Logger) core.PresenceClient {
	return &PresenceClientLogger{
		client: client,
		logger: logger.With("interface", "PresenceClient"),
	}
}

func (l *PresenceClientLogger) GetPresence(ctx context.Context, token string) (core.PresenceStatus, error) {
	start := time.Now()
	l.logger.Debug("GetPresence called")

	status, err := l.client.GetPresence(ctx, token)
	duration := time.Since(start)

	if err != nil {
		l.logger.Debug("GetPresence failed",
			"duration", duration,
			"error", err)
		return status, err
	}

	l.logger.Debug("GetPresence completed",
		"availability", status.Availability,
		"activity", status.Activity,
		"duration", duration)

	return status, nil
}

// LightControllerLogger wraps a LightController and logs all method calls
type LightControllerLogger struct {
	light  core.LightController
	logger *slog.Logger
}

// NewLightControllerLogger creates a new logging decorator for LightController
func NewLightControllerLogger(light core.LightController, logger *slog.Logger) core.LightController {
	return &LightControllerLogger{
		light:  light,
		logger: logger.With("interface", "LightController"),
	}
}

func (l *LightControllerLogger) SetOn(ctx context.Context, on bool) error {
	start := time.Now()
	l.logger.Debug("SetOn called",
		"on", on)

	err := l.light.SetOn(ctx, on)
	duration := time.Since(start)

	if err != nil {
		l.logger.Warn("SetOn failed",
			"on", on,
			"duration", duration,
			"error", err)
		return err
	}

	l.logger.Debug("SetOn completed",
		"on", on,
		"duration", duration)

	return nil
}

// CredentialProviderLogger wraps a CredentialProvider and logs all method calls.
// The token itself is never logged.
type CredentialProviderLogger struct {
	provider core.CredentialProvider
	logger   *slog.Logger
}

// NewCredentialProviderLogger creates a new logging decorator for CredentialProvider
func NewCredentialProviderLogger(provider core.CredentialProvider, logger *slog.Logger) core.CredentialProvider {
	return &CredentialProviderLogger{
		provider: provider,
		logger:   logger.With("interface", "CredentialProvider"),
	}
}

func (l *CredentialProviderLogger) GetToken(ctx context.Context) (core.Credential, error) {
	start := time.Now()
	l.logger.Debug("GetToken called")

	cred, err := l.provider.GetToken(ctx)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetToken failed",
			"duration", duration,
			"error", err)
		return cred, err
	}

	l.logger.Info("GetToken completed",
		"ttl", cred.TTL,
		"duration", duration)

	return cred, nil
}
