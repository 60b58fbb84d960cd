package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the polling pipeline
type ErrorKind int

const (
	KindAuth ErrorKind = iota + 1
	KindPresenceUnavailable
	KindLightCommand
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindPresenceUnavailable:
		return "presence_unavailable"
	case KindLightCommand:
		return "light_command"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a tagged failure. Op names the operation that failed and Err
// carries the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrAuth)
// works regardless of Op and cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrAuth                = &Error{Kind: KindAuth, Op: "auth"}
	ErrPresenceUnavailable = &Error{Kind: KindPresenceUnavailable, Op: "presence"}
	ErrLightCommand        = &Error{Kind: KindLightCommand, Op: "light"}
)

// AuthError wraps err as an identity authority failure
func AuthError(op string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

// PresenceUnavailable wraps err as a presence fetch failure
func PresenceUnavailable(op string, err error) error {
	return &Error{Kind: KindPresenceUnavailable, Op: op, Err: err}
}

// LightCommandFailure wraps err as a light command failure
func LightCommandFailure(op string, err error) error {
	return &Error{Kind: KindLightCommand, Op: op, Err: err}
}
