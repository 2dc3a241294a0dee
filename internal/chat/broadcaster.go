package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	apperrors "github.com/dev-dami/jobchat/internal/errors"
	"github.com/dev-dami/jobchat/internal/metrics"
	"golang.org/x/time/rate"
)

const transportSocket = "socket"

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type connectCmd struct {
	baseBroadcasterCmd
	connID  string
	conn    Conn
	address string
	reply   chan string
}

type submitCmd struct {
	baseBroadcasterCmd
	connID string
	text   string
	reply  chan submitResult
}

type submitResult struct {
	message Message
	err     error
}

type disconnectCmd struct {
	baseBroadcasterCmd
	connID string
	reason string
	reply  chan struct{}
}

type clientCountCmd struct {
	baseBroadcasterCmd
	reply chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

type participant struct {
	address string
	writer  *clientWriter
	limiter *rate.Limiter
}

// Options tune a Broadcaster.
type Options struct {
	// BufferSize is the per-connection live frame budget, DefaultBufferSize
	// when unset. A connection whose buffer stays full is dropped.
	BufferSize  int
	SubmitRate  rate.Limit
	SubmitBurst int
	// RejectInvalid sends a message-rejected event to the submitting
	// connection instead of dropping invalid submissions silently.
	RejectInvalid bool
	// OnAccepted runs on the broadcaster loop after each broadcast and must
	// not block.
	OnAccepted func(Message)
}

// Broadcaster bridges History appends to every connected participant.
// A single goroutine owns the connection table; public methods send it
// commands, so connects, submissions and disconnects are processed in one
// serialized order.
type Broadcaster struct {
	cmdCh        chan broadcasterCmd
	done         chan struct{}
	history      *History
	participants map[string]*participant
	order        []string
	opts         Options
	log          *slog.Logger
	wsMetrics    *metrics.WebSocketMetrics
	chatMetrics  *metrics.ChatMetrics
}

// NewBroadcaster starts the broadcaster loop for history.
func NewBroadcaster(history *History, opts Options, m *metrics.Metrics, log *slog.Logger) *Broadcaster {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	opts.BufferSize = max(opts.BufferSize, MinBufferSize)
	if opts.SubmitRate <= 0 {
		opts.SubmitRate = rate.Inf
	}
	opts.SubmitBurst = max(opts.SubmitBurst, 1)

	b := &Broadcaster{
		cmdCh:        make(chan broadcasterCmd, 256),
		done:         make(chan struct{}),
		history:      history,
		participants: make(map[string]*participant),
		opts:         opts,
		log:          log.With("component", "broadcaster"),
		wsMetrics:    m.WebSocket,
		chatMetrics:  m.Chat,
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	defer close(b.done)

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case connectCmd:
			c.reply <- b.handleConnect(c)
		case submitCmd:
			message, err := b.handleSubmit(c)
			c.reply <- submitResult{message: message, err: err}
		case disconnectCmd:
			b.handleDisconnect(c.connID, c.reason)
			if c.reply != nil {
				close(c.reply)
			}
		case clientCountCmd:
			c.reply <- len(b.participants)
		case stopCmd:
			b.handleStop()
			return
		}
	}
}

func (b *Broadcaster) handleConnect(c connectCmd) string {
	if p, exists := b.participants[c.connID]; exists {
		b.log.Debug("Connection already registered", "conn_id", c.connID)
		if c.conn != p.writer.conn {
			_ = c.conn.Close()
		}
		return p.address
	}

	p := &participant{
		address: c.address,
		limiter: rate.NewLimiter(b.opts.SubmitRate, b.opts.SubmitBurst),
	}
	connID := c.connID
	p.writer = newClientWriter(c.conn, b.opts.BufferSize, func(err error, writerDone <-chan struct{}) {
		b.log.Warn("Write to participant failed", "conn_id", connID,
			"error", apperrors.TransportError("write frame", err))
		select {
		case b.cmdCh <- disconnectCmd{connID: connID, reason: "write_error"}:
		case <-writerDone:
		case <-b.done:
		}
	})

	// History is queued before the connection joins the fan-out set, so
	// it always precedes live messages. A fresh writer has room for both.
	b.send(c.connID, p, Envelope{Event: EventUserJoined, Data: UserJoined{Address: c.address}})
	b.send(c.connID, p, Envelope{Event: EventPreviousMessages, Data: b.history.Snapshot()})

	b.participants[c.connID] = p
	b.order = append(b.order, c.connID)
	b.wsMetrics.ActiveConnections.Set(float64(len(b.participants)))
	b.log.Info("Participant connected", "conn_id", c.connID, "address", c.address,
		"participants", len(b.participants))
	return c.address
}

func (b *Broadcaster) handleSubmit(c submitCmd) (Message, error) {
	p, exists := b.participants[c.connID]
	if !exists {
		return Message{}, ErrNotConnected
	}

	if !p.limiter.Allow() {
		b.reject(c.connID, p, ErrRateLimited)
		return Message{}, ErrRateLimited
	}

	message, err := b.history.Append(c.text, p.address)
	if err != nil {
		b.reject(c.connID, p, err)
		return Message{}, err
	}

	b.chatMetrics.MessagesAccepted.WithLabelValues(transportSocket).Inc()
	b.chatMetrics.HistoryLength.Set(float64(b.history.Len()))
	b.broadcast(Envelope{Event: EventMessage, Data: message})

	if b.opts.OnAccepted != nil {
		b.opts.OnAccepted(message)
	}
	return message, nil
}

func (b *Broadcaster) reject(connID string, p *participant, err error) {
	reason := RejectionReason(err)
	b.chatMetrics.MessagesRejected.WithLabelValues(transportSocket, reason).Inc()
	b.log.Debug("Submission dropped", "conn_id", connID, "reason", reason)
	if !b.opts.RejectInvalid {
		return
	}
	structuredErr := apperrors.AsStructuredError(err)
	if !b.send(connID, p, Envelope{Event: EventMessageRejected, Data: Rejection{Error: structuredErr.Message}}) {
		b.log.Warn("Disconnecting slow participant", "conn_id", connID)
		b.handleDisconnect(connID, "slow_client")
	}
}

// broadcast queues the envelope on every connection in connect order.
func (b *Broadcaster) broadcast(envelope Envelope) {
	frame, err := json.Marshal(envelope)
	if err != nil {
		b.log.Error("Failed to marshal broadcast", "event", envelope.Event, "error", err)
		return
	}

	var slow []string
	for _, connID := range b.order {
		if !b.participants[connID].writer.enqueue(frame, enqueueGrace) {
			slow = append(slow, connID)
			continue
		}
		b.wsMetrics.MessagesPublished.Inc()
	}

	for _, connID := range slow {
		b.log.Warn("Disconnecting slow participant", "conn_id", connID)
		b.handleDisconnect(connID, "slow_client")
	}
}

// send queues the envelope on one connection and reports false when the
// connection's buffer stayed full.
func (b *Broadcaster) send(connID string, p *participant, envelope Envelope) bool {
	frame, err := json.Marshal(envelope)
	if err != nil {
		b.log.Error("Failed to marshal frame", "event", envelope.Event, "error", err)
		return true
	}
	if !p.writer.enqueue(frame, enqueueGrace) {
		b.log.Warn("Frame lost, buffer full", "conn_id", connID, "event", envelope.Event)
		return false
	}
	b.wsMetrics.MessagesPublished.Inc()
	return true
}

func (b *Broadcaster) handleDisconnect(connID, reason string) {
	p, exists := b.participants[connID]
	if !exists {
		return
	}

	p.writer.stop()
	delete(b.participants, connID)
	b.order = slices.DeleteFunc(b.order, func(id string) bool { return id == connID })
	b.wsMetrics.ActiveConnections.Set(float64(len(b.participants)))
	if reason != "" {
		b.wsMetrics.DroppedClients.WithLabelValues(reason).Inc()
	}
	b.log.Info("Participant disconnected", "conn_id", connID, "address", p.address,
		"participants", len(b.participants))
}

func (b *Broadcaster) handleStop() {
	for _, connID := range b.order {
		b.participants[connID].writer.stop()
	}
	clear(b.participants)
	b.order = nil
	b.wsMetrics.ActiveConnections.Set(0)
}

// --- Public API ---

// Connect registers conn under connID with the resolved address, then
// sends it the address and the history snapshot. Connecting an id twice
// returns the bound address without resending anything and closes the
// second conn.
func (b *Broadcaster) Connect(ctx context.Context, connID string, conn Conn, address string) (string, error) {
	reply := make(chan string, 1)
	if err := b.dispatch(ctx, connectCmd{connID: connID, conn: conn, address: address, reply: reply}); err != nil {
		return "", err
	}
	select {
	case addr := <-reply:
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b.done:
		return "", ErrStopped
	}
}

// Submit appends text on behalf of connID and broadcasts the result to all
// connections, the sender included. The returned error is informational;
// the realtime transport drops invalid submissions.
func (b *Broadcaster) Submit(ctx context.Context, connID, text string) (Message, error) {
	reply := make(chan submitResult, 1)
	if err := b.dispatch(ctx, submitCmd{connID: connID, text: text, reply: reply}); err != nil {
		return Message{}, err
	}
	select {
	case result := <-reply:
		return result.message, result.err
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-b.done:
		return Message{}, ErrStopped
	}
}

// Disconnect releases connID. It returns once the connection is removed
// from the fan-out set.
func (b *Broadcaster) Disconnect(ctx context.Context, connID string) {
	reply := make(chan struct{})
	if err := b.dispatch(ctx, disconnectCmd{connID: connID, reply: reply}); err != nil {
		return
	}
	select {
	case <-reply:
	case <-ctx.Done():
	case <-b.done:
	}
}

func (b *Broadcaster) ClientCount() int {
	reply := make(chan int, 1)
	if err := b.dispatch(context.Background(), clientCountCmd{reply: reply}); err != nil {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// Stop closes every connection and ends the loop.
func (b *Broadcaster) Stop() {
	_ = b.dispatch(context.Background(), stopCmd{})
	<-b.done
}

func (b *Broadcaster) dispatch(ctx context.Context, cmd broadcasterCmd) error {
	select {
	case b.cmdCh <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrStopped
	}
}
