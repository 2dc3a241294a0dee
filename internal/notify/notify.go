// Package notify is the boundary to the push-notification provider. The
// chat server only ever asks it to deliver a payload to a target; how the
// provider renders or routes the notification is not its concern.
package notify

import (
	"context"
	"time"

	apperrors "github.com/dev-dami/jobchat/internal/errors"
)

// ErrNoTarget is returned when a Target names neither a topic nor addresses.
var ErrNoTarget = apperrors.ValidationError("notification target is empty")

// Target selects the recipients of a notification: a topic, a set of
// participant addresses, or both.
type Target struct {
	Topic     string
	Addresses []string
}

// Size is the number of individual delivery targets.
func (t Target) Size() int {
	n := len(t.Addresses)
	if t.Topic != "" {
		n++
	}
	return n
}

// Notification is the payload handed to the provider.
type Notification struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Tag    string    `json:"tag"`
	URL    string    `json:"url,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Report counts per-target delivery outcomes.
type Report struct {
	Succeeded int
	Failed    int
}

// Notifier attempts delivery of a notification to every member of a target.
type Notifier interface {
	Notify(ctx context.Context, target Target, notification Notification) (Report, error)
}

// Nop discards notifications.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Notify(_ context.Context, target Target, _ Notification) (Report, error) {
	if target.Size() == 0 {
		return Report{}, ErrNoTarget
	}
	return Report{}, nil
}
