// Package events publishes user lifecycle notifications. Delivery is best effort.
package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Skotchmaster/auth_service/internal/logging"
)

const (
	TypeUserRegistered = "user_registered"
	TypeUserLoggedIn   = "user_logged_in"
	TypeUserLoggedOut  = "user_logged_out"
)

type Event struct {
	Type     string    `json:"type"`
	UserID   uint      `json:"user_id"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type producer interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type KafkaPublisher struct {
	producer producer
	topic    string
}

func NewKafkaPublisher(p producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return k.producer.PublishEvent(ctx, k.topic, strconv.FormatUint(uint64(ev.UserID), 10), ev)
}

// LogPublisher writes events to the request logger. Used when no brokers are configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev Event) error {
	logging.FromContext(ctx).Info("user_event",
		slog.String("type", ev.Type),
		slog.Uint64("user_id", uint64(ev.UserID)),
		slog.String("username", ev.Username),
	)
	return nil
}

// Emit publishes ev and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = LogPublisher{}
)
