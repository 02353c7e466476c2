// Package event provides an in-memory implementation of the plugin.EventBus
// interface. Tables publish snapshot and refresh-failure events on it; the
// ops server subscribes to track table health.
package event

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/pkg/plugin"
)

var _ plugin.EventBus = (*Bus)(nil)

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibagent_events_published_total",
			Help: "Events published on the internal bus.",
		},
		[]string{"topic"},
	)
	handlerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibagent_event_handler_panics_total",
			Help: "Event handlers that panicked.",
		},
		[]string{"topic"},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, handlerPanics)
}

// Bus is an in-memory event bus. Publish runs handlers in the caller's
// goroutine; PublishAsync runs each handler in its own goroutine and Wait
// blocks until those have returned.
//
// A subscription topic ending in ".*" matches every topic under that
// prefix, so "mib.*" receives both mib.snapshot.published and
// mib.refresh.failed.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  uint64
	pending sync.WaitGroup
	logger  *zap.Logger
}

type subscription struct {
	id      uint64
	pattern string // empty matches all topics
	handler plugin.EventHandler
}

func (s subscription) matches(topic string) bool {
	switch {
	case s.pattern == "":
		return true
	case strings.HasSuffix(s.pattern, ".*"):
		return strings.HasPrefix(topic, s.pattern[:len(s.pattern)-1])
	default:
		return s.pattern == topic
	}
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	eventsPublished.WithLabelValues(event.Topic).Inc()
	for _, h := range b.match(event.Topic) {
		b.safeCall(ctx, h, event)
	}
	return nil
}

// PublishAsync dispatches an event asynchronously to all matching handlers.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	eventsPublished.WithLabelValues(event.Topic).Inc()
	for _, h := range b.match(event.Topic) {
		b.pending.Add(1)
		go func() {
			defer b.pending.Done()
			b.safeCall(ctx, h, event)
		}()
	}
}

// Wait blocks until every handler started by PublishAsync has returned.
func (b *Bus) Wait() { b.pending.Wait() }

// Subscribe registers a handler for a topic or topic prefix pattern.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	return b.add(topic, handler)
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	return b.add("", handler)
}

func (b *Bus) add(pattern string, handler plugin.EventHandler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, pattern: pattern, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// match returns the handlers subscribed to topic, in subscription order.
func (b *Bus) match(topic string) []plugin.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []plugin.EventHandler
	for _, s := range b.subs {
		if s.matches(topic) {
			out = append(out, s.handler)
		}
	}
	return out
}

func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanics.WithLabelValues(event.Topic).Inc()
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
