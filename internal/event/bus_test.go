package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/mibagent/pkg/plugin"
)

func TestBus_PublishTopics(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	ctx := context.Background()

	var exact, prefix, all []string
	b.Subscribe("mib.snapshot.published", func(_ context.Context, e plugin.Event) { exact = append(exact, e.Topic) })
	b.Subscribe("mib.*", func(_ context.Context, e plugin.Event) { prefix = append(prefix, e.Topic) })
	b.SubscribeAll(func(_ context.Context, e plugin.Event) { all = append(all, e.Topic) })

	for _, topic := range []string{"mib.snapshot.published", "mib.refresh.failed", "server.started", "mibx.other"} {
		assert.NoError(t, b.Publish(ctx, plugin.Event{Topic: topic}))
	}

	assert.Equal(t, []string{"mib.snapshot.published"}, exact)
	assert.Equal(t, []string{"mib.snapshot.published", "mib.refresh.failed"}, prefix)
	assert.Len(t, all, 4)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	var n int
	unsub := b.Subscribe("a", func(context.Context, plugin.Event) { n++ })
	other := b.Subscribe("a", func(context.Context, plugin.Event) { n += 10 })

	b.Publish(context.Background(), plugin.Event{Topic: "a"})
	unsub()
	unsub()
	b.Publish(context.Background(), plugin.Event{Topic: "a"})
	other()
	b.Publish(context.Background(), plugin.Event{Topic: "a"})

	assert.Equal(t, 21, n)
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	var called bool
	b.Subscribe("x", func(context.Context, plugin.Event) { panic("boom") })
	b.Subscribe("x", func(context.Context, plugin.Event) { called = true })

	assert.NotPanics(t, func() {
		_ = b.Publish(context.Background(), plugin.Event{Topic: "x", Source: "test"})
	})
	assert.True(t, called)
}

func TestBus_PublishAsync(t *testing.T) {
	b := NewBus(nil)
	var n atomic.Int32
	for range 5 {
		b.SubscribeAll(func(context.Context, plugin.Event) { n.Add(1) })
	}
	b.PublishAsync(context.Background(), plugin.Event{Topic: "y"})
	b.Wait()
	assert.Equal(t, int32(5), n.Load())
}

func TestBus_ConcurrentSubscribeAndPublish(t *testing.T) {
	b := NewBus(zaptest.NewLogger(t))
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				unsub := b.Subscribe("mib.*", func(context.Context, plugin.Event) {})
				unsub()
			}
		}()
		go func() {
			defer wg.Done()
			for range 50 {
				_ = b.Publish(context.Background(), plugin.Event{Topic: "mib.refresh.failed"})
			}
		}()
	}
	wg.Wait()
}
