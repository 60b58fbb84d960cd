package core

import (
	"time"
)

// PresenceUnknown is reported for availability or activity when the
// presence service omits the field.
const PresenceUnknown = "PresenceUnknown"

// Credential is a bearer token together with the time it was obtained
// and its nominal lifetime. It is replaced wholesale on refresh.
type Credential struct {
	Token      string
	ObtainedAt time.Time
	TTL        time.Duration
}

// ValidUntil returns the instant after which the credential must be
// renewed, given a safety margin subtracted from its lifetime.
func (c Credential) ValidUntil(margin time.Duration) time.Time {
	return c.ObtainedAt.Add(c.TTL - c.EffectiveMargin(margin))
}

// EffectiveMargin returns margin, or half the lifetime when margin would
// leave no validity window at all.
func (c Credential) EffectiveMargin(margin time.Duration) time.Duration {
	if margin >= c.TTL {
		return c.TTL / 2
	}
	return margin
}

// ValidAt reports whether the credential can be used without renewal.
func (c Credential) ValidAt(now time.Time, margin time.Duration) bool {
	return c.Token != "" && now.Before(c.ValidUntil(margin))
}

// ExpiredAt reports whether the nominal lifetime has fully elapsed.
// A credential past its safety margin but not yet expired may still be
// used as a fallback when renewal fails.
func (c Credential) ExpiredAt(now time.Time) bool {
	return c.Token == "" || !now.Before(c.ObtainedAt.Add(c.TTL))
}

// PresenceStatus is the status returned by the presence service for one poll
type PresenceStatus struct {
	Availability string `json:"availability"`
	Activity     string `json:"activity"`
}

// Observation is a successfully fetched and classified presence status
type Observation struct {
	PollID string
	At     time.Time
	Status PresenceStatus
	Active bool
}

// Transition records one attempt to change the light state
type Transition struct {
	ID      string
	PollID  string
	At      time.Time
	On      bool
	Status  PresenceStatus
	Success bool
	Error   string // empty on success
}
