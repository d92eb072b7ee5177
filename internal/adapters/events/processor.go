package events

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/ports"
)

//go:embed envelope.schema.json
var envelopeSchema []byte

const envelopeSchemaURL = "envelope.schema.json"

// DeadLetterEventType tags messages that can never be applied.
const DeadLetterEventType = "exchange.dead-letter"

// ErrPoisonMessage marks a message that is acknowledged without being applied.
var ErrPoisonMessage = errors.New("poison message")

type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, env contracts.Envelope) error
}

// Processor validates inbound payloads and applies them through the handler. Messages that fail
// validation, decoding or are of an unsupported kind are dead-lettered and reported as
// ErrPoisonMessage. Any other handler error is returned untouched so the caller can retry.
type Processor struct {
	logger     *slog.Logger
	handler    EnvelopeHandler
	schema     *jsonschema.Schema
	deadLetter ports.EventPublisher
}

func NewProcessor(logger *slog.Logger, handler EnvelopeHandler, deadLetter ports.EventPublisher) (*Processor, error) {
	schema, err := compileEnvelopeSchema()
	if err != nil {
		return nil, err
	}
	return &Processor{logger: logger, handler: handler, schema: schema, deadLetter: deadLetter}, nil
}

func compileEnvelopeSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("parse envelope schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("load envelope schema: %w", err)
	}
	schema, err := c.Compile(envelopeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return schema, nil
}

func (p *Processor) Process(ctx context.Context, msg Message) error {
	env, err := p.decode(msg.Payload)
	if err != nil {
		return p.reject(ctx, msg, err)
	}
	if err := p.handler.HandleEnvelope(ctx, env); err != nil {
		if errors.Is(err, domain.ErrUnsupportedEvent) || errors.Is(err, domain.ErrInvalidItem) {
			return p.reject(ctx, msg, err)
		}
		return err
	}
	return nil
}

func (p *Processor) decode(payload []byte) (contracts.Envelope, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return contracts.Envelope{}, fmt.Errorf("%w: envelope is not json: %v", domain.ErrInvalidItem, err)
	}
	if err := p.schema.Validate(inst); err != nil {
		return contracts.Envelope{}, fmt.Errorf("%w: envelope schema: %v", domain.ErrInvalidItem, err)
	}
	var env contracts.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return contracts.Envelope{}, fmt.Errorf("%w: decode envelope: %v", domain.ErrInvalidItem, err)
	}
	return env, nil
}

func (p *Processor) reject(ctx context.Context, msg Message, cause error) error {
	p.logger.WarnContext(ctx, "inbound message rejected",
		"module", "events.processor",
		"layer", "adapter",
		"operation", "process",
		"outcome", "dead_lettered",
		"topic", msg.Topic,
		"offset", msg.Offset,
		"routing_key", msg.Headers[HeaderRoutingKey],
		"message_id", msg.Headers[HeaderMessageID],
		"error", cause,
	)
	if p.deadLetter != nil {
		if err := p.deadLetter.Publish(ctx, DeadLetterEventType, msg.Payload, string(msg.Key)); err != nil {
			return fmt.Errorf("dead-letter %s@%d: %w", msg.Topic, msg.Offset, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrPoisonMessage, cause)
}
