package chat

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
)

// Journal durably records accepted messages.
type Journal interface {
	Record(message Message) error
}

// History is the authoritative, capacity-bounded sequence of accepted
// messages. It is safe for concurrent use; every mutation is serialized so
// appends are observed in a single order by all readers.
type History struct {
	mu       sync.Mutex
	messages []Message
	capacity int
	instance string
	seq      uint64
	clock    clockwork.Clock
	journal  Journal
	log      *slog.Logger
}

type HistoryOption func(*History)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(capacity int) HistoryOption {
	return func(h *History) {
		if capacity > 0 {
			h.capacity = capacity
		}
	}
}

func WithClock(clock clockwork.Clock) HistoryOption {
	return func(h *History) { h.clock = clock }
}

// WithJournal records every accepted message. Journal failures are logged
// and never reject the message.
func WithJournal(journal Journal) HistoryOption {
	return func(h *History) { h.journal = journal }
}

func WithLogger(log *slog.Logger) HistoryOption {
	return func(h *History) { h.log = log }
}

// NewHistory returns an empty history.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{
		capacity: DefaultCapacity,
		instance: uuid.NewString()[:8],
		clock:    clockwork.NewRealClock(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.messages = make([]Message, 0, h.capacity+1)
	return h
}

// Validate trims body and checks it against the length bounds.
func Validate(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	if utf16Len(trimmed) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return trimmed, nil
}

// Append validates body, stores it as a new message attributed to
// participant and evicts the oldest messages beyond capacity.
func (h *History) Append(body, participant string) (Message, error) {
	trimmed, err := Validate(body)
	if err != nil {
		return Message{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now().UTC()
	h.seq++
	message := Message{
		ID:          fmt.Sprintf("%d-%s-%d", now.UnixMilli(), h.instance, h.seq),
		Participant: participant,
		Body:        trimmed,
		CreatedAt:   now,
	}

	h.messages = append(h.messages, message)
	h.evict()

	if h.journal != nil {
		if err := h.journal.Record(message); err != nil {
			h.log.Warn("Failed to journal message", "message_id", message.ID, "error", err)
		}
	}
	return message, nil
}

// Restore replaces the history with messages, keeping the newest ones
// when there are more than capacity.
func (h *History) Restore(messages []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages[:0], messages...)
	h.evict()
}

// Snapshot returns a copy of the history in acceptance order.
func (h *History) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.copyFrom(0)
}

// SinceID returns the messages accepted after the message with the given
// id. When id is empty or no longer retained the full history is returned,
// so a client never silently misses messages.
func (h *History) SinceID(id string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id == "" {
		return h.copyFrom(0)
	}
	_, idx, found := lo.FindIndexOf(h.messages, func(m Message) bool { return m.ID == id })
	if !found {
		return h.copyFrom(0)
	}
	return h.copyFrom(idx + 1)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func (h *History) Capacity() int {
	return h.capacity
}

// evict drops from the front until len <= capacity. Caller holds mu.
func (h *History) evict() {
	if overflow := len(h.messages) - h.capacity; overflow > 0 {
		// Shift in place so the backing array does not grow unbounded.
		n := copy(h.messages, h.messages[overflow:])
		clear(h.messages[n:])
		h.messages = h.messages[:n]
	}
}

func (h *History) copyFrom(start int) []Message {
	out := make([]Message, len(h.messages)-start)
	copy(out, h.messages[start:])
	return out
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
