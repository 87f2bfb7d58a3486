// Package notify delivers cart events to external webhook consumers through
// the task queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/cart-engine/internal/events"
)

// TaskCartEvent is the queue task type carrying one cart event.
const TaskCartEvent = "notify:cart_event"

// Enqueuer schedules cart events for webhook delivery. It implements the
// events package Scheduler contract.
type Enqueuer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
}

// Schedule serialises the event and enqueues a delivery task. With no client
// configured scheduling is a no-op, which keeps webhooks optional.
func (e Enqueuer) Schedule(_ context.Context, event events.Event) error {
	if e.Client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	opts := []asynq.Option{
		asynq.TaskID(event.ID.String()),
	}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	maxRetry := e.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 6
	}
	opts = append(opts, asynq.MaxRetry(maxRetry))

	task := asynq.NewTask(TaskCartEvent, payload)
	if _, err := e.Client.Enqueue(task, opts...); err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", event.Topic, err)
	}
	return nil
}
