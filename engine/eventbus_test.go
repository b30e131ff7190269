package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"tourneykit/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsub := bus.Subscribe(core.EventBadgeEarned, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewBadgeEarned("u", "champion"))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
	unsub()
	bus.Publish(context.Background(), core.NewBadgeEarned("u", "champion"))
	if count != 1 {
		t.Fatalf("handler ran after unsubscribe: %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventRoleChanged, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewRoleChanged("u", "admin", core.RoleVIP))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	var seen []core.EventType
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { seen = append(seen, e.Type) })
	bus.Publish(context.Background(), core.NewStatsRecorded("u", core.StatTournamentsJoined, 1, 1))
	bus.Publish(context.Background(), core.NewBadgeGranted("u", "mvp"))
	if len(seen) != 2 || seen[0] != core.EventStatsRecorded || seen[1] != core.EventBadgeGranted {
		t.Fatalf("unexpected events: %v", seen)
	}
}

func TestEventBusDropsWhenQueueFullAndAfterClose(t *testing.T) {
	var dropped int32
	block := make(chan struct{})
	bus := NewEventBus(DispatchAsync, WithQueueSize(1), OnDrop(func(core.Event) { atomic.AddInt32(&dropped, 1) }))
	bus.Subscribe(core.EventBadgeEarned, func(ctx context.Context, e core.Event) { <-block })

	for i := 0; i < 50; i++ {
		bus.Publish(context.Background(), core.NewBadgeEarned("u", "legend"))
	}
	if atomic.LoadInt32(&dropped) == 0 {
		t.Fatal("expected drops with a blocked consumer and a queue of one")
	}
	close(block)
	bus.Close()

	before := atomic.LoadInt32(&dropped)
	bus.Publish(context.Background(), core.NewBadgeEarned("u", "legend"))
	if atomic.LoadInt32(&dropped) != before+1 {
		t.Fatal("publish after close should drop")
	}
}
