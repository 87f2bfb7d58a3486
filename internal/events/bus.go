// Package events fans cart mutation events out to in-process handlers and
// an optional delivery scheduler.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one emitted cart mutation.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Handler reacts to emitted events in-process (logging, metrics, counters).
type Handler interface {
	Notify(ctx context.Context, event Event) error
}

// Scheduler hands events to an out-of-process delivery mechanism, e.g. the
// webhook queue.
type Scheduler interface {
	Schedule(ctx context.Context, event Event) error
}

// Bus dispatches events to all configured handlers. It implements the cart
// package's Notifier contract.
type Bus struct {
	Handlers  []Handler
	Scheduler Scheduler
	Now       func() time.Time
}

// Emit encodes the payload and dispatches the event. Handler failures are
// joined and returned; the caller decides whether they matter (the cart
// aggregate only logs them).
func (b *Bus) Emit(ctx context.Context, topic string, payload any) error {
	if b == nil {
		return nil
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return errors.New("events: topic is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	event := Event{
		ID:         uuid.New(),
		Topic:      topic,
		Payload:    encoded,
		OccurredAt: now,
	}

	var joined error
	if b.Scheduler != nil {
		if schedErr := b.Scheduler.Schedule(ctx, event); schedErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: schedule delivery: %w", schedErr))
		}
	}
	for _, handler := range b.Handlers {
		if handler == nil {
			continue
		}
		if notifyErr := handler.Notify(ctx, event); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: handler: %w", notifyErr))
		}
	}
	return joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return encodePayload([]byte(v))
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data := []byte(v)
		if !json.Valid(data) {
			return nil, errors.New("payload is not valid json")
		}
		return data, nil
	default:
		return json.Marshal(v)
	}
}

// LogHandler writes every event to the structured log.
type LogHandler struct {
	Logger zerolog.Logger
}

// Notify logs the event at debug level.
func (h LogHandler) Notify(_ context.Context, event Event) error {
	h.Logger.Debug().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		RawJSON("payload", event.Payload).
		Msg("cart_event")
	return nil
}
