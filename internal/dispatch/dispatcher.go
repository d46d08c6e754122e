// Package dispatch decouples broker reception from client fan-out with a
// bounded single-producer single-consumer queue.
package dispatch

import (
	"context"
	"log/slog"

	"dchat/internal/domain"
	"dchat/internal/observability"
)

// DefaultCapacity bounds how many received messages may wait for fan-out.
const DefaultCapacity = 1000

// Broadcaster fans one message out to every connection subscribed to its
// room. Implemented by the websocket registry.
type Broadcaster interface {
	Broadcast(room string, view *domain.MessageView)
}

// Dispatcher owns the delivery queue. Exactly one producer (the broker
// consumer) calls Enqueue and exactly one consumer loop drains it, so
// receipt order is preserved into the broadcast step.
type Dispatcher struct {
	queue       chan *domain.MessageView
	broadcaster Broadcaster
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(broadcaster Broadcaster, capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Dispatcher{
		queue:       make(chan *domain.MessageView, capacity),
		broadcaster: broadcaster,
	}
}

// Enqueue adds a message to the delivery queue. When the queue is full it
// blocks rather than drop: sustained overload backpressures all the way to
// the broker client, trading latency for no silent loss at this stage.
func (d *Dispatcher) Enqueue(ctx context.Context, view *domain.MessageView) error {
	select {
	case d.queue <- view:
		observability.DispatchQueueDepth.Set(float64(len(d.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is cancelled, broadcasting each message
// to its room. A broadcast already in flight completes; nothing further is
// drained after cancellation.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatcher shutting down",
				slog.Int("pending", len(d.queue)))
			return ctx.Err()
		case view := <-d.queue:
			observability.DispatchQueueDepth.Set(float64(len(d.queue)))
			d.broadcaster.Broadcast(view.Room, view)
			observability.DispatchedMessages.Inc()
		}
	}
}

// Depth reports how many messages are waiting for fan-out.
func (d *Dispatcher) Depth() int {
	return len(d.queue)
}
