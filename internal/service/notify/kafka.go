package notify

import (
	"context"
	"fmt"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
)

// Publisher is the part of the kafka producer the sink uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaSink publishes notifications keyed by symbol, so one asset's notifications stay ordered.
type KafkaSink struct {
	pub   Publisher
	topic string
}

var _ domrepo.NotificationSink = (*KafkaSink)(nil)

func NewKafkaSink(pub Publisher, topic string) *KafkaSink {
	return &KafkaSink{pub: pub, topic: topic}
}

func (k *KafkaSink) Name() string   { return "kafka" }
func (k *KafkaSink) External() bool { return true }

func (k *KafkaSink) Send(ctx context.Context, n models.Notification) error {
	if err := k.pub.Publish(ctx, k.topic, []byte(n.Symbol), n); err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	return nil
}
