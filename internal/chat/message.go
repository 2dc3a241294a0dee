// Package chat implements the global chat room: a capacity-bounded message
// history and the broadcaster that fans accepted messages out to every
// connected participant.
package chat

import (
	"errors"
	"time"

	apperrors "github.com/dev-dami/jobchat/internal/errors"
)

// MaxMessageLength is the longest accepted body, counted in UTF-16 code units.
const MaxMessageLength = 500

// DefaultCapacity is the number of messages retained by a History.
const DefaultCapacity = 100

var (
	ErrEmptyMessage   = apperrors.ValidationError("Message cannot be empty")
	ErrMessageTooLong = apperrors.ValidationError("Message too long (max 500 characters)")
	ErrRateLimited    = apperrors.ValidationError("Too many messages, slow down")

	ErrNotConnected = errors.New("connection is not registered")
	ErrStopped      = errors.New("broadcaster stopped")
)

// RejectionReason is a short metric label for why a submission was not
// accepted.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return "empty"
	case errors.Is(err, ErrMessageTooLong):
		return "too_long"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "invalid"
	}
}

// Message is an accepted chat message. CreatedAt is assigned by the server
// and is the authoritative ordering point.
type Message struct {
	ID          string    `json:"id"`
	Participant string    `json:"user"`
	Body        string    `json:"message"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Outbound realtime events.
const (
	EventUserJoined       = "user-joined"
	EventPreviousMessages = "previous-messages"
	EventMessage          = "message"
	EventMessageRejected  = "message-rejected"
)

// Envelope is the frame written to realtime connections.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// UserJoined is the payload of EventUserJoined.
type UserJoined struct {
	Address string `json:"address"`
}

// Rejection is the payload of EventMessageRejected.
type Rejection struct {
	Error string `json:"error"`
}
