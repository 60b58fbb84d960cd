package idgen

import (
	"github.com/google/uuid"
)

// ID prefixes for different models
const (
	PrefixPoll       = "poll_"
	PrefixTransition = "tr_"
	PrefixRequest    = "req_"
)

// NewPoll generates a poll iteration ID with poll_ prefix
func NewPoll() string {
	return PrefixPoll + uuid.New().String()
}

// NewTransition generates a light transition ID with tr_ prefix
func NewTransition() string {
	return PrefixTransition + uuid.New().String()
}

// NewRequest generates a status API request ID with req_ prefix
func NewRequest() string {
	return PrefixRequest + uuid.New().String()
}

// New generates a generic UUID without prefix (JWT IDs)
func New() string {
	return uuid.New().String()
}
