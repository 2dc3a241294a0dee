package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dev-dami/jobchat/internal/chat"
	"github.com/dev-dami/jobchat/internal/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	localConnID  = "conn_id"
	localAddress = "participant_address"
)

// WebSocketServer adapts websocket connections to the chat broadcaster.
type WebSocketServer struct {
	broadcaster  *chat.Broadcaster
	resolver     identity.Resolver
	writeTimeout time.Duration
	log          *slog.Logger
}

func NewWebSocket(broadcaster *chat.Broadcaster, resolver identity.Resolver, writeTimeout time.Duration, log *slog.Logger) *WebSocketServer {
	return &WebSocketServer{
		broadcaster:  broadcaster,
		resolver:     resolver,
		writeTimeout: writeTimeout,
		log:          log.With("component", "websocket"),
	}
}

// Upgrade rejects plain HTTP requests and resolves the participant address
// while request headers are still available.
func (s *WebSocketServer) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(localConnID, uuid.NewString())
	c.Locals(localAddress, s.resolver.ResolveIdentity(requestMetadata(c)))
	return c.Next()
}

// Handler returns the fiber handler serving upgraded connections.
func (s *WebSocketServer) Handler() fiber.Handler {
	return websocket.New(s.HandleWebSocket)
}

func (s *WebSocketServer) HandleWebSocket(conn *websocket.Conn) {
	connID, _ := conn.Locals(localConnID).(string)
	address, _ := conn.Locals(localAddress).(string)
	if address == "" {
		address = identity.Unknown
	}
	log := s.log.With("conn_id", connID)
	ctx := context.Background()

	if _, err := s.broadcaster.Connect(ctx, connID, &wsConn{conn: conn, writeTimeout: s.writeTimeout}, address); err != nil {
		log.Warn("Connect failed", "error", err)
		_ = conn.Close()
		return
	}
	defer s.broadcaster.Disconnect(ctx, connID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("Read error", "error", err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Debug("Malformed frame", "error", err)
			continue
		}

		switch frame.Event {
		case EventSendMessage:
			text, err := frame.Text()
			if err != nil {
				log.Debug("Malformed send-message", "error", err)
				continue
			}
			if _, err := s.broadcaster.Submit(ctx, connID, text); err != nil {
				if errors.Is(err, chat.ErrStopped) {
					return
				}
				log.Debug("Submission not accepted", "error", err)
			}
		default:
			log.Debug("Ignoring unknown event", "event", frame.Event)
		}
	}
}

// wsConn is the broadcaster's view of a websocket connection.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (w *wsConn) WriteFrame(data []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

func requestMetadata(c *fiber.Ctx) identity.Metadata {
	return identity.Metadata{
		Header:   func(name string) string { return c.Get(name) },
		PeerAddr: c.IP(),
	}
}
