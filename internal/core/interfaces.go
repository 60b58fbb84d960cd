package core

import "context"

// CredentialProvider obtains a fresh bearer token for the presence API.
// It keeps no expiry state between calls; the caller decides when to renew.
type CredentialProvider interface {
	GetToken(ctx context.Context) (Credential, error)
}

// PresenceClient reads the presence of the configured subject.
// Failures are returned as *Error with KindPresenceUnavailable.
type PresenceClient interface {
	GetPresence(ctx context.Context, token string) (PresenceStatus, error)
}

// LightController sets the light to a fully specified on/off state.
// Failures are returned as *Error with KindLightCommand.
type LightController interface {
	SetOn(ctx context.Context, on bool) error
}
