package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// PutEvents accepts at most this many entries per call.
const maxBatch = 10

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridge publishes events to an EventBridge bus.
type EventBridge struct {
	client  EventBridgeAPI
	busName string
	logger  *zap.Logger
}

func NewEventBridge(client EventBridgeAPI, busName string, logger *zap.Logger) *EventBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBridge{client: client, busName: busName, logger: logger.Named("eventbridge")}
}

// Publish sends events in batches of ten.
func (p *EventBridge) Publish(ctx context.Context, events ...Event) error {
	for i := 0; i < len(events); i += maxBatch {
		end := i + maxBatch
		if end > len(events) {
			end = len(events)
		}
		if err := p.publishBatch(ctx, events[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *EventBridge) publishBatch(ctx context.Context, batch []Event) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	for _, e := range batch {
		detail, err := json.Marshal(e)
		if err != nil {
			p.logger.Error("failed to marshal event", zap.Error(err), zap.String("event_type", e.Type))
			continue
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(Source),
			DetailType:   aws.String(e.Type),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(e.OccurredAt),
			Resources:    []string{fmt.Sprintf("arn:aws:aletheia::%s/%s", e.ProjectID, e.AggregateID)},
		})
	}
	if len(entries) == 0 {
		return nil
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return publishFailed(err, len(entries))
	}
	if out.FailedEntryCount > 0 {
		for i, entry := range out.Entries {
			if entry.ErrorCode != nil && i < len(batch) {
				p.logger.Error("event rejected by bus",
					zap.String("event_type", batch[i].Type),
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return publishFailed(fmt.Errorf("%d of %d entries rejected", out.FailedEntryCount, len(entries)), len(entries))
	}

	p.logger.Debug("events published", zap.Int("count", len(entries)), zap.String("event_bus", p.busName))
	return nil
}

func publishFailed(cause error, n int) error {
	return errors.External(errors.CodeEventPublishFailed.String(), "failed to publish events").
		WithDetailsf("%d events", n).
		WithRetryable(true).
		WithCause(cause).
		Build()
}
