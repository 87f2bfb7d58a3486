package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cart-engine/internal/events"
	"github.com/noah-isme/cart-engine/internal/obs"
)

func cartEventTask(t *testing.T, event events.Event) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return asynq.NewTask(TaskCartEvent, payload)
}

func TestHandleCartEventDeliversSignedPayload(t *testing.T) {
	event := events.Event{
		ID:         uuid.New(),
		Topic:      "cart.item_added",
		Payload:    json.RawMessage(`{"rowId":"abc","qty":2}`),
		OccurredAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}

	var received *http.Request
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Clone(context.Background())
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	deliverer := &Deliverer{URL: server.URL, Secret: "s3cret", Client: server.Client()}
	require.NoError(t, deliverer.HandleCartEvent(context.Background(), cartEventTask(t, event)))

	require.NotNil(t, received)
	require.Equal(t, "application/json", received.Header.Get("Content-Type"))
	require.Equal(t, event.ID.String(), received.Header.Get("X-Event-ID"))

	ts, err := strconv.ParseInt(received.Header.Get("X-Timestamp"), 10, 64)
	require.NoError(t, err)
	expected := ComputeSignature("s3cret", ts, event.ID.String(), body)
	require.Equal(t, expected, received.Header.Get("X-Signature"))

	var envelope struct {
		EventID string          `json:"eventId"`
		Topic   string          `json:"topic"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.Equal(t, event.ID.String(), envelope.EventID)
	require.Equal(t, "cart.item_added", envelope.Topic)
	require.JSONEq(t, `{"rowId":"abc","qty":2}`, string(envelope.Data))
}

func TestHandleCartEventRetriesOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	deliverer := &Deliverer{URL: server.URL, Secret: "s3cret", Client: server.Client()}
	event := events.Event{ID: uuid.New(), Topic: "cart.cleared", Payload: json.RawMessage(`{}`)}
	err := deliverer.HandleCartEvent(context.Background(), cartEventTask(t, event))
	require.Error(t, err)
}

func TestHandleCartEventRejectsBadPayload(t *testing.T) {
	deliverer := &Deliverer{URL: "http://localhost/hook", Secret: "s3cret"}
	err := deliverer.HandleCartEvent(context.Background(), asynq.NewTask(TaskCartEvent, []byte("not json")))
	require.Error(t, err)
}

func TestHandleCartEventRecordsDeliveryMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("cart", prometheus.NewRegistry())
	deliveredBefore := testutil.ToFloat64(obs.WebhookDeliveriesTotal.WithLabelValues("delivered"))
	failedBefore := testutil.ToFloat64(obs.WebhookDeliveriesTotal.WithLabelValues("failed"))

	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(okServer.Close)
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(badServer.Close)

	event := events.Event{ID: uuid.New(), Topic: "cart.item_added", Payload: json.RawMessage(`{}`)}
	deliverer := &Deliverer{URL: okServer.URL, Secret: "s3cret", Client: okServer.Client()}
	require.NoError(t, deliverer.HandleCartEvent(context.Background(), cartEventTask(t, event)))

	deliverer.URL = badServer.URL
	deliverer.Client = badServer.Client()
	require.Error(t, deliverer.HandleCartEvent(context.Background(), cartEventTask(t, event)))

	require.Equal(t, deliveredBefore+1, testutil.ToFloat64(obs.WebhookDeliveriesTotal.WithLabelValues("delivered")))
	require.Equal(t, failedBefore+1, testutil.ToFloat64(obs.WebhookDeliveriesTotal.WithLabelValues("failed")))
	require.GreaterOrEqual(t, testutil.CollectAndCount(obs.WebhookAttemptLatency), 2)
}

func TestValidateURL(t *testing.T) {
	require.NoError(t, validateURL("https://example.com/hooks/cart"))
	require.NoError(t, validateURL("http://localhost:9000/hooks"))
	require.Error(t, validateURL("http://example.com/hooks"))
	require.Error(t, validateURL("ftp://example.com"))
	require.Error(t, validateURL("https://"))
}

func TestComputeSignatureIsStable(t *testing.T) {
	a := ComputeSignature("secret", 1717232400, "event-1", []byte(`{"a":1}`))
	b := ComputeSignature("secret", 1717232400, "event-1", []byte(`{"a":1}`))
	c := ComputeSignature("other", 1717232400, "event-1", []byte(`{"a":1}`))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
