package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/pantryloop/pantryloop-backend/internal/outcomes"
	"github.com/pantryloop/pantryloop-backend/pkg/db/models"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	pkgerrors "github.com/pantryloop/pantryloop-backend/pkg/errors"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/metrics"
)

const outcomesConsumerName = "outcomes"

const (
	resultProcessed = "processed"
	resultDuplicate = "duplicate"
	resultInvalid   = "invalid"
	resultFailed    = "failed"
)

type ingester interface {
	IngestOutcome(ctx context.Context, input outcomes.IngestInput) (*models.OrderOutcome, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// outcomeEnvelope is the wire shape on the order-outcomes subscription.
type outcomeEnvelope struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Consumer ingests order outcome envelopes from Pub/Sub while honoring Redis
// idempotency. Redelivery safety is layered: the idempotency mark absorbs
// repeats of the same event id and the ingest path absorbs repeats of the
// same order id.
type Consumer struct {
	subscription *pubsub.Subscriber
	ingester     ingester
	manager      idempotencyChecker
	metrics      *metrics.ConsumerMetrics
	logg         *logger.Logger
}

// NewConsumer builds the outcome consumer for the provided subscription.
func NewConsumer(subscription *pubsub.Subscriber, svc ingester, manager idempotencyChecker, consumerMetrics *metrics.ConsumerMetrics, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("outcomes subscription is required")
	}
	if svc == nil {
		return nil, errors.New("outcomes service is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		ingester:     svc,
		manager:      manager,
		metrics:      consumerMetrics,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription
// errors.
func (c *Consumer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *pubsub.Message) {
		start := time.Now()
		result := c.process(innerCtx, msg)
		c.metrics.ObserveHandling(outcomesConsumerName, time.Since(start))
		c.metrics.IncMessage(outcomesConsumerName, result.label)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack  bool
	label string
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := c.logg.WithFields(ctx, fields)

	var envelope outcomeEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode outcome envelope", err)
		return processResult{label: resultInvalid}
	}

	fields["event_id"] = envelope.EventID
	fields["event_type"] = envelope.EventType
	logCtx = c.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutcomeEventType(strings.TrimSpace(envelope.EventType))
	if err != nil || eventType != enums.OutcomeEventRecorded {
		c.logg.Info(logCtx, "event not handled by outcomes consumer")
		return processResult{label: resultInvalid}
	}

	eventID, err := uuid.Parse(strings.TrimSpace(envelope.EventID))
	if err != nil {
		c.logg.Warn(logCtx, "invalid event id")
		return processResult{label: resultInvalid}
	}

	var input outcomes.IngestInput
	if err := json.Unmarshal(envelope.Payload, &input); err != nil {
		c.logg.Error(logCtx, "failed to decode outcome payload", err)
		return processResult{label: resultInvalid}
	}
	if input.OccurredAt.IsZero() {
		input.OccurredAt = envelope.OccurredAt
	}

	already, err := c.manager.CheckAndMarkProcessed(logCtx, outcomesConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true, label: resultFailed}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{label: resultDuplicate}
	}

	if _, err := c.ingester.IngestOutcome(logCtx, input); err != nil {
		_ = c.manager.Delete(logCtx, outcomesConsumerName, eventID)
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeValidation {
			c.logg.Warn(logCtx, "outcome payload rejected: "+appErr.Message())
			return processResult{label: resultInvalid}
		}
		c.logg.Error(logCtx, "failed to ingest outcome", err)
		return processResult{nack: true, label: resultFailed}
	}

	c.logg.Info(logCtx, "order outcome ingested")
	return processResult{label: resultProcessed}
}
