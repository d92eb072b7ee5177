package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

type KafkaPublisher struct {
	writer       messageWriter
	topicByEvent map[string]string
	defaultTopic string
}

// NewKafkaPublisher publishes each event to its mapped topic, falling back to defaultTopic and then
// to the event type itself.
func NewKafkaPublisher(brokers []string, topicByEvent map[string]string, defaultTopic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicByEvent: topicByEvent,
		defaultTopic: defaultTopic,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	topic := eventType
	if p.defaultTopic != "" {
		topic = p.defaultTopic
	}
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		topic = mapped
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(partitionKey),
		Value:   payload,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(eventType)}},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.InfoContext(ctx, "event published",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	return nil
}

// FanoutPublisher hands every event to each publisher and joins their failures.
type FanoutPublisher struct {
	publishers []ports.EventPublisher
}

func NewFanoutPublisher(publishers ...ports.EventPublisher) *FanoutPublisher {
	out := make([]ports.EventPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return &FanoutPublisher{publishers: out}
}

func (p *FanoutPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	var errs []error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, eventType, payload, partitionKey); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
