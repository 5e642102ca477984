package notify

import (
	"context"
	"fmt"

	"github.com/yourorg/pairs-analytics/internal/kafka"
	"github.com/yourorg/pairs-analytics/internal/model"
)

// Publisher is satisfied by *kafka.Producer
type Publisher interface {
	Publish(ctx context.Context, topic string, msg kafka.Message) error
}

// KafkaNotifier writes alerts to a topic keyed by symbol pair
type KafkaNotifier struct {
	producer Publisher
	topic    string
}

// NewKafkaNotifier creates a new Kafka notifier
func NewKafkaNotifier(producer Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// Notify implements Notifier
func (n *KafkaNotifier) Notify(ctx context.Context, alerts []model.TriggeredAlert) error {
	for _, a := range alerts {
		msg := kafka.Message{
			Key:   fmt.Sprintf("%s/%s", a.Rule.SymbolX, a.Rule.SymbolY),
			Value: a,
		}
		if err := n.producer.Publish(ctx, n.topic, msg); err != nil {
			return fmt.Errorf("publish alert %d: %w", a.Rule.ID, err)
		}
	}
	return nil
}
