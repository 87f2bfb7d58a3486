package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	events []Event
	err    error
}

func (h *recordingHandler) Notify(_ context.Context, event Event) error {
	h.events = append(h.events, event)
	return h.err
}

type recordingScheduler struct {
	events []Event
	err    error
}

func (s *recordingScheduler) Schedule(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestBusEmitDispatchesToHandlersAndScheduler(t *testing.T) {
	handler := &recordingHandler{}
	scheduler := &recordingScheduler{}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bus := &Bus{
		Handlers:  []Handler{handler},
		Scheduler: scheduler,
		Now:       func() time.Time { return at },
	}

	err := bus.Emit(context.Background(), "cart.item_added", map[string]string{"rowId": "abc"})
	require.NoError(t, err)

	require.Len(t, handler.events, 1)
	require.Len(t, scheduler.events, 1)
	event := handler.events[0]
	require.Equal(t, "cart.item_added", event.Topic)
	require.Equal(t, at, event.OccurredAt)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", event.ID.String())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	require.Equal(t, "abc", payload["rowId"])
}

func TestBusEmitRequiresTopic(t *testing.T) {
	bus := &Bus{}
	require.Error(t, bus.Emit(context.Background(), "  ", nil))
}

func TestBusEmitJoinsFailures(t *testing.T) {
	handlerErr := errors.New("handler down")
	schedErr := errors.New("queue down")
	healthy := &recordingHandler{}
	bus := &Bus{
		Handlers:  []Handler{&recordingHandler{err: handlerErr}, healthy},
		Scheduler: &recordingScheduler{err: schedErr},
	}

	err := bus.Emit(context.Background(), "cart.cleared", nil)
	require.ErrorIs(t, err, handlerErr)
	require.ErrorIs(t, err, schedErr)
	require.Len(t, healthy.events, 1, "healthy handler still runs")
}

func TestEncodePayloadShapes(t *testing.T) {
	raw, err := encodePayload(nil)
	require.NoError(t, err)
	require.JSONEq(t, "{}", string(raw))

	raw, err = encodePayload(json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(raw))

	raw, err = encodePayload(`{"b":2}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"b":2}`, string(raw))

	_, err = encodePayload([]byte("not json"))
	require.Error(t, err)
}

func TestNilBusEmitIsNoOp(t *testing.T) {
	var bus *Bus
	require.NoError(t, bus.Emit(context.Background(), "cart.item_added", nil))
}
