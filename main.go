package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dev-dami/jobchat/internal/chat"
	"github.com/dev-dami/jobchat/internal/config"
	"github.com/dev-dami/jobchat/internal/identity"
	"github.com/dev-dami/jobchat/internal/logging"
	"github.com/dev-dami/jobchat/internal/metrics"
	"github.com/dev-dami/jobchat/internal/notify"
	"github.com/dev-dami/jobchat/internal/scheduler"
	"github.com/dev-dami/jobchat/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	historyOpts := []chat.HistoryOption{chat.WithCapacity(cfg.HistoryCapacity), chat.WithLogger(log)}
	var journal *store.BadgerJournal
	if cfg.JournalPath != "" {
		journal, err = store.Open(cfg.JournalPath, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("Closing journal...")
			_ = journal.Close()
		}()
		historyOpts = append(historyOpts, chat.WithJournal(journal))
	}
	history := chat.NewHistory(historyOpts...)

	var jobs *scheduler.Scheduler
	if journal != nil {
		recent, err := journal.Recent(history.Capacity())
		if err != nil {
			return fmt.Errorf("restore history: %w", err)
		}
		history.Restore(recent)
		m.Chat.HistoryLength.Set(float64(history.Len()))
		log.Info("History restored from journal", "messages", len(recent))

		jobs, err = scheduler.New(log)
		if err != nil {
			return err
		}
		keep := history.Capacity()
		if err := jobs.Every("journal-compaction", cfg.CompactionInterval, func() error {
			_, err := journal.Compact(keep)
			return err
		}); err != nil {
			return err
		}
		jobs.Start()
	}

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()
	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyTimeout, m.Notify, log)

	broadcaster := chat.NewBroadcaster(history, chat.Options{
		BufferSize:    cfg.ClientBufferSize,
		SubmitRate:    rate.Limit(cfg.SubmitRate),
		SubmitBurst:   cfg.SubmitBurst,
		RejectInvalid: cfg.RejectInvalidSubmissions,
		OnAccepted: func(msg chat.Message) {
			dispatcher.Dispatch(notify.Target{Topic: cfg.NotifyTopic}, messageNotification(msg))
		},
	}, m, log)

	server := NewServer(ServerDeps{
		History:      history,
		Broadcaster:  broadcaster,
		Resolver:     identity.AddressResolver{},
		Metrics:      m,
		Gatherer:     registry,
		WriteTimeout: cfg.WriteTimeout,
		Log:          log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Listen(cfg.Address()); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		return server.Shutdown(cfg.ShutdownTimeout)
	})
	err = g.Wait()

	broadcaster.Stop()
	dispatcher.Wait()
	if jobs != nil {
		if stopErr := jobs.Stop(); stopErr != nil {
			log.Warn("Scheduler shutdown failed", "error", stopErr)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

// newNotifier returns the redis-backed notifier when REDIS_URL is set and
// a no-op notifier otherwise.
func newNotifier(cfg *config.Config, log *slog.Logger) (notify.Notifier, func(), error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, push notifications disabled")
		return notify.Nop{}, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// Delivery failures are reported per notification; the chat keeps working.
		log.Warn("Redis unreachable at startup", "error", err)
	}

	return notify.NewRedisNotifier(client, log), func() { _ = client.Close() }, nil
}

func messageNotification(msg chat.Message) notify.Notification {
	return notify.Notification{
		ID:     msg.ID,
		Title:  "New message from " + msg.Participant,
		Body:   msg.Body,
		Tag:    "chat-message",
		URL:    "/",
		SentAt: msg.CreatedAt,
	}
}
