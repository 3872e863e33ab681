package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

func TestChannelBus(t *testing.T) {
	bus := NewChannelBus(100)
	defer bus.Close()

	ctx := context.Background()
	namespace := "ds-001"

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		received := make(chan *domain.Message, 1)

		_, err := bus.Subscribe(ctx, namespace, "test.topic", func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		if err := bus.Publish(ctx, namespace, "test.topic", []byte("hello")); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		select {
		case msg := <-received:
			if string(msg.Payload) != "hello" {
				t.Errorf("expected payload 'hello', got '%s'", string(msg.Payload))
			}
			if msg.Namespace != namespace {
				t.Errorf("expected namespace '%s', got '%s'", namespace, msg.Namespace)
			}
			if msg.Topic != "test.topic" || msg.ID == "" || msg.Timestamp == 0 {
				t.Errorf("incomplete envelope: %+v", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		var received1, received2 atomic.Int32

		bus.Subscribe(ctx, "ds-a", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, "ds-b", "isolation.topic", func(ctx context.Context, msg *domain.Message) error {
			received2.Add(1)
			return nil
		})

		bus.Publish(ctx, "ds-a", "isolation.topic", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if received1.Load() != 1 {
			t.Errorf("ds-a should receive 1 message, got %d", received1.Load())
		}
		if received2.Load() != 0 {
			t.Errorf("ds-b should receive 0 messages, got %d", received2.Load())
		}
	})

	t.Run("RequiresNamespace", func(t *testing.T) {
		if err := bus.Publish(ctx, "", "topic", []byte("data")); !errors.Is(err, ErrNamespaceRequired) {
			t.Errorf("expected ErrNamespaceRequired, got %v", err)
		}

		_, err := bus.Subscribe(ctx, "", "topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if !errors.Is(err, ErrNamespaceRequired) {
			t.Errorf("expected ErrNamespaceRequired, got %v", err)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, _ := bus.Subscribe(ctx, namespace, "unsub.topic", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		bus.Publish(ctx, namespace, "unsub.topic", []byte("msg1"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message before unsubscribe, got %d", count.Load())
		}

		sub.Unsubscribe()

		bus.Publish(ctx, namespace, "unsub.topic", []byte("msg2"))
		time.Sleep(50 * time.Millisecond)

		if count.Load() != 1 {
			t.Errorf("expected 1 message after unsubscribe, got %d", count.Load())
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count1, count2 atomic.Int32

		bus.Subscribe(ctx, namespace, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count1.Add(1)
			return nil
		})
		bus.Subscribe(ctx, namespace, "multi.topic", func(ctx context.Context, msg *domain.Message) error {
			count2.Add(1)
			return nil
		})

		bus.Publish(ctx, namespace, "multi.topic", []byte("broadcast"))
		time.Sleep(50 * time.Millisecond)

		if count1.Load() != 1 || count2.Load() != 1 {
			t.Errorf("expected both subscribers to receive, got %d and %d", count1.Load(), count2.Load())
		}
	})

	t.Run("TraceIDMetadata", func(t *testing.T) {
		received := make(chan *domain.Message, 1)
		bus.Subscribe(ctx, namespace, "traced.topic", func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})

		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			SpanID:  trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		})
		traced := trace.ContextWithSpanContext(ctx, sc)

		bus.Publish(traced, namespace, "traced.topic", nil)

		select {
		case msg := <-received:
			if msg.Metadata[MetadataTraceID] != sc.TraceID().String() {
				t.Errorf("expected trace id %s, got %q", sc.TraceID(), msg.Metadata[MetadataTraceID])
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := bus.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, _ := bus.Subscribe(ctx, namespace, "my.topic", func(ctx context.Context, msg *domain.Message) error {
			return nil
		})

		if sub.Topic() != "my.topic" {
			t.Errorf("expected topic 'my.topic', got '%s'", sub.Topic())
		}
	})
}

func TestChannelBusDropsWhenFull(t *testing.T) {
	bus := NewChannelBus(1)
	defer bus.Close()

	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	bus.Subscribe(ctx, "ds", "slow.topic", func(ctx context.Context, msg *domain.Message) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	bus.Publish(ctx, "ds", "slow.topic", []byte("1"))
	<-started

	bus.Publish(ctx, "ds", "slow.topic", []byte("2"))
	bus.Publish(ctx, "ds", "slow.topic", []byte("3"))
	close(release)

	if got := bus.Dropped(); got != 1 {
		t.Errorf("expected 1 dropped message, got %d", got)
	}
}

func TestChannelBusClose(t *testing.T) {
	bus := NewChannelBus(100)

	ctx := context.Background()

	bus.Subscribe(ctx, "ds", "close.topic", func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := bus.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	if err := bus.Publish(ctx, "ds", "close.topic", []byte("data")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}

	if err := bus.Ping(ctx); err == nil {
		t.Error("expected ping error after close")
	}

	if err := bus.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		bus, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer bus.Close()

		if _, ok := bus.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestSubject(t *testing.T) {
	if got := subject("ds-1", domain.TopicReportComputed); got != "railwatch.ds-1.railwatch.report.computed" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestChannelBusHighLoad(t *testing.T) {
	bus := NewChannelBus(1000)
	defer bus.Close()

	ctx := context.Background()

	var received atomic.Int32
	const messageCount = 100

	var wg sync.WaitGroup
	wg.Add(messageCount)

	bus.Subscribe(ctx, "ds-load", "load.topic", func(ctx context.Context, msg *domain.Message) error {
		received.Add(1)
		wg.Done()
		return nil
	})

	for i := 0; i < messageCount; i++ {
		bus.Publish(ctx, "ds-load", "load.topic", []byte("msg"))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Load() != messageCount {
			t.Errorf("expected %d messages, got %d", messageCount, received.Load())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d messages", received.Load(), messageCount)
	}
}
