package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Inserter stages an event inside a caller's transaction. *Repository
// satisfies it.
type Inserter interface {
	InsertEvent(ctx context.Context, tx pgx.Tx, event *Event) error
}

// Enqueue marshals payload and stages it inside tx.
func Enqueue(
	ctx context.Context,
	tx pgx.Tx,
	repo Inserter,
	aggregateType string,
	aggregateID int64,
	routingKey string,
	payload any,
) (*Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   &aggregateID,
		RoutingKey:    routingKey,
		Payload:       body,
		Status:        StatusPending,
	}
	if err := repo.InsertEvent(ctx, tx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// traceIDOf reads the trace_id field most payloads carry.
func traceIDOf(payload json.RawMessage) string {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.TraceID
}
