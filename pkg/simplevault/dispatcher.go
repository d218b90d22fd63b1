package simplevault

import (
	"context"
	"log/slog"
	"time"
)

// EventDispatcher publishes mutation events on the realtime and durable
// channels. The two paths are independent: there is no ordering between
// them, nor between events about different files.
type EventDispatcher struct {
	realtime RealtimeBus
	durable  DurableLog
	timeout  time.Duration
	logger   *slog.Logger
}

// NewEventDispatcher creates a dispatcher. Nil buses are replaced by no-ops.
func NewEventDispatcher(realtime RealtimeBus, durable DurableLog, timeout time.Duration, logger *slog.Logger) *EventDispatcher {
	if realtime == nil {
		realtime = NewNoopRealtimeBus()
	}
	if durable == nil {
		durable = NewNoopDurableLog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDispatcher{
		realtime: realtime,
		durable:  durable,
		timeout:  timeout,
		logger:   logger,
	}
}

// PublishDurable appends the event to the durable log. Failures, including
// timeouts, are returned as *TransientError.
func (d *EventDispatcher) PublishDurable(ctx context.Context, event Event) error {
	err := withTimeout(ctx, d.timeout, func(ctx context.Context) error {
		return d.durable.Publish(ctx, event)
	})
	eventsPublished.WithLabelValues("durable", string(event.Kind()), resultLabel(err)).Inc()
	return transient("publish durable "+string(event.Kind()), "", err)
}

// PublishRealtime fans the event out to live subscribers. Delivery is at
// most once, so failures are logged and dropped.
func (d *EventDispatcher) PublishRealtime(ctx context.Context, event Event) {
	err := withTimeout(ctx, d.timeout, func(ctx context.Context) error {
		return d.realtime.Publish(ctx, event)
	})
	eventsPublished.WithLabelValues("realtime", string(event.Kind()), resultLabel(err)).Inc()
	if err != nil {
		d.logger.WarnContext(ctx, "realtime publish failed",
			"kind", event.Kind(), "file_id", event.Subject(), "err", err)
	}
}

// Publish sends the event on both channels and returns the durable result.
func (d *EventDispatcher) Publish(ctx context.Context, event Event) error {
	err := d.PublishDurable(ctx, event)
	d.PublishRealtime(ctx, event)
	return err
}

// Subscribe attaches a realtime listener for one kind.
func (d *EventDispatcher) Subscribe(ctx context.Context, kind EventKind) (<-chan Event, error) {
	return d.realtime.Subscribe(ctx, kind)
}

// withTimeout runs fn under a deadline when d is positive.
func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
