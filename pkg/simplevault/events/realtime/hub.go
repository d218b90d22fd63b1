// Package realtime is the in-process, at-most-once event fan-out used by the
// WebSocket feed.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

var droppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "simplevault_realtime_dropped_total",
	Help: "Realtime events dropped because a subscriber's buffer was full.",
}, []string{"kind"})

type subscriber struct {
	ch chan simplevault.Event
}

// Hub implements simplevault.RealtimeBus. Events are delivered only to
// subscribers attached at publish time and never replayed.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[simplevault.EventKind]map[*subscriber]struct{}
	buffer      int
	logger      *slog.Logger
}

// Option configures a Hub
type Option func(*Hub)

// WithBuffer sets the per-subscriber channel capacity
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the logger used for dropped events
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates an empty hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subscribers: make(map[simplevault.EventKind]map[*subscriber]struct{}),
		buffer:      DefaultBuffer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish hands the event to every subscriber of its kind without blocking.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, event simplevault.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers[event.Kind()] {
		select {
		case sub.ch <- event:
		default:
			droppedEvents.WithLabelValues(string(event.Kind())).Inc()
			h.logger.DebugContext(ctx, "realtime subscriber full, event dropped",
				"kind", event.Kind(), "file_id", event.Subject())
		}
	}
	return nil
}

// Subscribe attaches a listener for one kind. The channel is closed once ctx
// is done.
func (h *Hub) Subscribe(ctx context.Context, kind simplevault.EventKind) (<-chan simplevault.Event, error) {
	if _, err := simplevault.ParseEventKind(string(kind)); err != nil {
		return nil, err
	}
	sub := &subscriber{ch: make(chan simplevault.Event, h.buffer)}

	h.mu.Lock()
	if h.subscribers[kind] == nil {
		h.subscribers[kind] = make(map[*subscriber]struct{})
	}
	h.subscribers[kind][sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subscribers[kind], sub)
		close(sub.ch)
		h.mu.Unlock()
	}()

	return sub.ch, nil
}

// Subscribers returns the number of listeners attached for kind
func (h *Hub) Subscribers(kind simplevault.EventKind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[kind])
}
