package engine

import (
	"context"
	"sync"

	"tourneykit/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

const (
	defaultQueueSize = 2048
	defaultWorkers   = 4
)

type handlerFunc func(context.Context, core.Event)

// EventBus provides thread-safe pub/sub with sync and async dispatch.
// Async publishing never blocks: when the queue is full the event is dropped
// and reported to the drop callback.
type EventBus struct {
	mode   DispatchMode
	mu     sync.RWMutex
	subs   map[core.EventType]map[int64]handlerFunc
	nextID int64

	queue  chan core.Event
	wg     sync.WaitGroup
	once   sync.Once
	done   chan struct{}
	onDrop func(core.Event)
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithQueueSize sets the async queue capacity.
func WithQueueSize(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.queue = make(chan core.Event, n)
		}
	}
}

// OnDrop registers a callback for events dropped by a full async queue.
func OnDrop(fn func(core.Event)) BusOption { return func(e *EventBus) { e.onDrop = fn } }

func NewEventBus(mode DispatchMode, opts ...BusOption) *EventBus {
	eb := &EventBus{
		mode:  mode,
		subs:  make(map[core.EventType]map[int64]handlerFunc),
		queue: make(chan core.Event, defaultQueueSize),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(eb)
	}
	if mode == DispatchAsync {
		eb.startWorkers(defaultWorkers)
	}
	return eb
}

func (e *EventBus) startWorkers(n int) {
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case ev := <-e.queue:
					e.dispatch(context.Background(), ev)
				case <-e.done:
					e.drain()
					return
				}
			}
		}()
	}
}

// drain delivers whatever is still queued at close time.
func (e *EventBus) drain() {
	for {
		select {
		case ev := <-e.queue:
			e.dispatch(context.Background(), ev)
		default:
			return
		}
	}
}

// Close stops async workers after they deliver queued events. Publishing
// after Close drops events in async mode.
func (e *EventBus) Close() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]handlerFunc)
	}
	e.subs[typ][id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs[typ], id)
	}
}

// SubscribeAll registers handler for every event type.
func (e *EventBus) SubscribeAll(handler func(context.Context, core.Event)) func() {
	unsubs := make([]func(), 0, len(core.EventTypes))
	for _, typ := range core.EventTypes {
		unsubs = append(unsubs, e.Subscribe(typ, handler))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish sends an event to subscribers.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode != DispatchAsync {
		e.dispatch(ctx, ev)
		return
	}
	select {
	case <-e.done:
		e.dropped(ev)
		return
	default:
	}
	select {
	case e.queue <- ev:
	default:
		e.dropped(ev)
	}
}

func (e *EventBus) dropped(ev core.Event) {
	if e.onDrop != nil {
		e.onDrop(ev)
	}
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	subs := e.subs[ev.Type]
	// copy so callbacks run without the lock
	handlers := make([]handlerFunc, 0, len(subs))
	for _, h := range subs {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
