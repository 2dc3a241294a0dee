package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dev-dami/jobchat/internal/metrics"
)

// Dispatcher delivers notifications in the background so callers on the
// realtime path never wait for the provider.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	metrics  *metrics.NotifyMetrics
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, timeout time.Duration, m *metrics.NotifyMetrics, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		metrics:  m,
		log:      log.With("component", "dispatcher"),
	}
}

// Dispatch starts delivery and returns immediately.
func (d *Dispatcher) Dispatch(target Target, notification Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		report, err := d.notifier.Notify(ctx, target, notification)
		if err != nil {
			d.metrics.Deliveries.WithLabelValues("error").Inc()
			d.log.Warn("Notification not sent", "notification_id", notification.ID, "error", err)
			return
		}
		d.metrics.Deliveries.WithLabelValues("succeeded").Add(float64(report.Succeeded))
		d.metrics.Deliveries.WithLabelValues("failed").Add(float64(report.Failed))
		d.log.Debug("Notification dispatched", "notification_id", notification.ID,
			"succeeded", report.Succeeded, "failed", report.Failed)
	}()
}

// Wait blocks until all in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
