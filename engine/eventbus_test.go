package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"tilequest/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventLevelStarted, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewLevelStarted("s", 1))
	bus.Publish(context.Background(), core.NewLevelUnlocked("s", 2))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventLevelStarted, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewLevelStarted("s", 1))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusSubscribeAllAndUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	var all, started int
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { all++ })
	unsub := bus.Subscribe(core.EventLevelStarted, func(ctx context.Context, e core.Event) { started++ })

	bus.Publish(context.Background(), core.NewLevelStarted("s", 1))
	bus.Publish(context.Background(), core.NewLevelFailed("s", 1, 3, "time_limit"))
	unsub()
	bus.Publish(context.Background(), core.NewLevelStarted("s", 1))

	if all != 3 {
		t.Fatalf("wildcard: want 3 got %d", all)
	}
	if started != 1 {
		t.Fatalf("typed: want 1 got %d", started)
	}
}

func TestEventBusCloseIsIdempotentAndDrops(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var n atomic.Int32
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { n.Add(1) })
	bus.Close()
	bus.Close()
	bus.Publish(context.Background(), core.NewLevelStarted("s", 1))
	time.Sleep(10 * time.Millisecond)
	if n.Load() != 0 {
		t.Fatalf("published after close: got %d deliveries", n.Load())
	}
}
