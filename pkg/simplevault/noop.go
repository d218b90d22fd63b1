package simplevault

import (
	"context"
	"log/slog"
)

// NoopRealtimeBus is a no-operation implementation of RealtimeBus.
// Subscribers never receive anything.
type NoopRealtimeBus struct{}

// NewNoopRealtimeBus creates a new no-operation realtime bus
func NewNoopRealtimeBus() RealtimeBus {
	return &NoopRealtimeBus{}
}

// Publish does nothing and returns nil
func (n *NoopRealtimeBus) Publish(ctx context.Context, event Event) error {
	return nil
}

// Subscribe returns a channel that is closed once ctx is done
func (n *NoopRealtimeBus) Subscribe(ctx context.Context, kind EventKind) (<-chan Event, error) {
	ch := make(chan Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// NoopDurableLog is a no-operation implementation of DurableLog
type NoopDurableLog struct{}

// NewNoopDurableLog creates a new no-operation durable log
func NewNoopDurableLog() DurableLog {
	return &NoopDurableLog{}
}

// Publish does nothing and returns nil
func (n *NoopDurableLog) Publish(ctx context.Context, event Event) error {
	return nil
}

// LoggingDurableLog writes durable records to a structured logger instead of
// a message log. Useful in development when no broker is available.
type LoggingDurableLog struct {
	logger *slog.Logger
}

// NewLoggingDurableLog creates a durable log that logs each record
func NewLoggingDurableLog(logger *slog.Logger) DurableLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingDurableLog{logger: logger}
}

// Publish logs the durable record for event
func (l *LoggingDurableLog) Publish(ctx context.Context, event Event) error {
	rec := NewDurableRecord(event)
	l.logger.InfoContext(ctx, "file event",
		"topic", DurableTopic,
		"type", rec.Type,
		"file_id", rec.FileID,
		"user_id", rec.UserID,
		"metadata", rec.Metadata,
	)
	return nil
}
