// Package notify fans newly raised alerts out to the configured channels.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/aquatracking/aquatracking/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes alerts to the structured log.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Notify(_ context.Context, a domain.Alert) error {
	l.Logger.Warn().
		Str("alert_id", a.ID).
		Str("home_id", a.HomeID).
		Str("type", a.Type).
		Str("date", a.Date).
		Msg(a.Message)
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes alerts as JSON keyed by home id, so one home's alerts
// stay ordered within a partition.
type Kafka struct {
	w messageWriter
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}}
}

func (k *Kafka) Notify(ctx context.Context, a domain.Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{Key: []byte(a.HomeID), Value: payload}); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", a.ID, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
