package main

import (
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dev-dami/jobchat/internal/chat"
	apperrors "github.com/dev-dami/jobchat/internal/errors"
	"github.com/dev-dami/jobchat/internal/identity"
	"github.com/dev-dami/jobchat/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const transportHTTP = "http"

//go:embed views
var viewsFS embed.FS

// ServerDeps are the collaborators of the HTTP server.
type ServerDeps struct {
	History     *chat.History
	Broadcaster *chat.Broadcaster
	Resolver    identity.Resolver
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	// WriteTimeout bounds each websocket frame write.
	WriteTimeout time.Duration
	Log          *slog.Logger
}

// Server exposes the chat over HTTP: the polling API, the websocket
// endpoint, the PWA shell and operational endpoints.
type Server struct {
	app      *fiber.App
	history  *chat.History
	resolver identity.Resolver
	chat     *metrics.ChatMetrics
	log      *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}

	log := deps.Log.With("component", "http")
	app := fiber.New(fiber.Config{
		AppName:               "jobchat",
		Views:                 html.NewFileSystem(http.FS(views), ".html"),
		ErrorHandler:          apperrors.Handler(log),
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024,
	})

	s := &Server{
		app:      app,
		history:  deps.History,
		resolver: deps.Resolver,
		chat:     deps.Metrics.Chat,
		log:      log,
	}

	ws := NewWebSocket(deps.Broadcaster, deps.Resolver, deps.WriteTimeout, deps.Log)

	app.Use(requestLogger(log))
	app.Use(deps.Metrics.HTTP.Middleware())
	app.Use(recover.New())

	app.Get("/", s.handleIndex)
	app.Get("/messages", s.handleGetMessages)
	app.Post("/messages", s.handlePostMessage)
	app.Get("/ws", ws.Upgrade, ws.Handler())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"participants": deps.Broadcaster.ClientCount(),
			"history":      deps.History.Len(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.Info("HTTP server listening", "address", addr)
	return s.app.Listen(addr)
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{
		"MaxLength": chat.MaxMessageLength,
		"Capacity":  s.history.Capacity(),
	})
}

func (s *Server) handleGetMessages(c *fiber.Ctx) error {
	address := s.resolver.ResolveIdentity(requestMetadata(c))

	var messages []chat.Message
	if lastID := c.Query("lastMessageId"); lastID != "" {
		messages = s.history.SinceID(lastID)
	} else {
		messages = s.history.Snapshot()
	}

	return c.JSON(MessagesResponse{Messages: messages, UserIP: address})
}

// handlePostMessage appends to the shared history. Socket participants are
// not notified; they share the history, and polling clients pick the
// message up on their next GET.
func (s *Server) handlePostMessage(c *fiber.Ctx) error {
	address := s.resolver.ResolveIdentity(requestMetadata(c))

	var req PostMessageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.chat.MessagesRejected.WithLabelValues(transportHTTP, "malformed").Inc()
		return apperrors.ValidationError("Invalid request body")
	}

	message, err := s.history.Append(req.Message, address)
	if err != nil {
		s.chat.MessagesRejected.WithLabelValues(transportHTTP, chat.RejectionReason(err)).Inc()
		return err
	}

	s.chat.MessagesAccepted.WithLabelValues(transportHTTP).Inc()
	s.chat.HistoryLength.Set(float64(s.history.Len()))
	return c.JSON(PostMessageResponse{Success: true, Message: message, UserIP: address})
}

func requestLogger(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug("Request handled",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)
		return err
	}
}
