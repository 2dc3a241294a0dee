//go:generate go run go.uber.org/mock/mockgen -source=redis.go -destination=../mocks/mock_publisher.go -package=mocks
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Publisher is the subset of the redis client used for delivery.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// TopicChannel is the pub/sub channel a push gateway subscribes to for topic.
func TopicChannel(topic string) string { return "notify:topic:" + topic }

// AddressChannel is the pub/sub channel for a single participant address.
func AddressChannel(address string) string { return "notify:addr:" + address }

// RedisNotifier publishes notifications on redis pub/sub channels, where
// the push gateway picks them up. A target counts as delivered when at
// least one subscriber received the payload.
type RedisNotifier struct {
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker
	log       *slog.Logger
}

var _ Notifier = (*RedisNotifier)(nil)

func NewRedisNotifier(publisher Publisher, log *slog.Logger) *RedisNotifier {
	log = log.With("component", "notifier")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-notify",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &RedisNotifier{publisher: publisher, breaker: breaker, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, target Target, notification Notification) (Report, error) {
	if target.Size() == 0 {
		return Report{}, ErrNoTarget
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return Report{}, fmt.Errorf("encode notification %s: %w", notification.ID, err)
	}

	channels := make([]string, 0, target.Size())
	if target.Topic != "" {
		channels = append(channels, TopicChannel(target.Topic))
	}
	for _, address := range target.Addresses {
		channels = append(channels, AddressChannel(address))
	}

	var report Report
	for _, channel := range channels {
		receivers, err := n.breaker.Execute(func() (interface{}, error) {
			return n.publisher.Publish(ctx, channel, payload).Result()
		})
		switch {
		case err != nil:
			report.Failed++
			n.log.Debug("Publish failed", "channel", channel, "error", err)
		case receivers.(int64) == 0:
			report.Failed++
			n.log.Debug("No subscriber for channel", "channel", channel)
		default:
			report.Succeeded++
		}
	}
	return report, nil
}
