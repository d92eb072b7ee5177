package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

const (
	HeaderRoutingKey = "routing-key"
	HeaderSenderID   = "sender-id"
	HeaderMessageID  = "message-id"
)

// InboxTopic is the topic a company node consumes its exchange messages from.
func InboxTopic(prefix, companyID string) string {
	return prefix + companyID
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaGateway publishes envelopes to the recipient's inbox topic. At most bufferSize sends are in
// flight; further sends fail fast with ErrBufferFull.
type KafkaGateway struct {
	logger      *slog.Logger
	writer      messageWriter
	inboxPrefix string
	inflight    chan struct{}
}

func NewKafkaGateway(logger *slog.Logger, brokers []string, inboxPrefix string, bufferSize int) (*KafkaGateway, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka gateway requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return newKafkaGateway(logger, writer, inboxPrefix, bufferSize), nil
}

func newKafkaGateway(logger *slog.Logger, writer messageWriter, inboxPrefix string, bufferSize int) *KafkaGateway {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &KafkaGateway{
		logger:      logger,
		writer:      writer,
		inboxPrefix: inboxPrefix,
		inflight:    make(chan struct{}, bufferSize),
	}
}

func (g *KafkaGateway) SendMessage(ctx context.Context, routingKey, recipientID string, env contracts.Envelope) (string, error) {
	select {
	case g.inflight <- struct{}{}:
	default:
		g.logger.WarnContext(ctx, "outbound message buffer full",
			"module", "events.gateway",
			"layer", "adapter",
			"operation", "send_message",
			"outcome", "rejected",
			"routing_key", routingKey,
			"recipient_id", recipientID,
			"message_id", env.MessageID,
		)
		return "", &domain.MessagingError{RoutingKey: routingKey, RecipientID: recipientID, Err: domain.ErrBufferFull}
	}
	defer func() { <-g.inflight }()

	payload, err := json.Marshal(env)
	if err != nil {
		return "", &domain.MessagingError{RoutingKey: routingKey, RecipientID: recipientID, Err: err}
	}
	key := env.RequestIDValue()
	if key == "" {
		key = env.Context.ProductID
	}
	err = g.writer.WriteMessages(ctx, kafka.Message{
		Topic: InboxTopic(g.inboxPrefix, recipientID),
		Key:   []byte(key),
		Value: payload,
		Time:  env.SentAt,
		Headers: []kafka.Header{
			{Key: HeaderRoutingKey, Value: []byte(routingKey)},
			{Key: HeaderSenderID, Value: []byte(env.SenderID)},
			{Key: HeaderMessageID, Value: []byte(env.MessageID)},
		},
	})
	if err != nil {
		return "", &domain.MessagingError{RoutingKey: routingKey, RecipientID: recipientID, Err: err}
	}
	return env.MessageID, nil
}

func (g *KafkaGateway) Close() error {
	return g.writer.Close()
}

// LoggingGateway records outbound envelopes in the log without delivering them. It backs nodes
// running without a broker.
type LoggingGateway struct {
	logger *slog.Logger
}

func NewLoggingGateway(logger *slog.Logger) *LoggingGateway {
	return &LoggingGateway{logger: logger}
}

func (g *LoggingGateway) SendMessage(ctx context.Context, routingKey, recipientID string, env contracts.Envelope) (string, error) {
	g.logger.InfoContext(ctx, "exchange message not delivered, no broker configured",
		"module", "events.gateway",
		"layer", "adapter",
		"operation", "send_message",
		"outcome", "skipped",
		"routing_key", routingKey,
		"recipient_id", recipientID,
		"message_id", env.MessageID,
		"payload_bytes", len(env.Data),
	)
	return env.MessageID, nil
}
