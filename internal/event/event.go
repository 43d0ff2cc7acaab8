package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultMaxInflight    = 1024
	defaultHandlerTimeout = 30 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

// Bus is an in-memory publish/subscribe bus. Handlers run on their own
// goroutines, bounded by a semaphore; a handler error or panic is logged and
// never propagates to the publisher.
type Bus struct {
	sem     chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates a bus. Callers should Stop it on shutdown to drain handlers.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		sem:      make(chan struct{}, defaultMaxInflight),
		timeout:  defaultHandlerTimeout,
		handlers: make(map[string][]Handler),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

type BusOption func(*Bus)

// WithMaxInflight bounds the number of concurrently running handlers.
func WithMaxInflight(n int) BusOption {
	return func(b *Bus) { b.sem = make(chan struct{}, n) }
}

// WithHandlerTimeout bounds the lifetime of each handler invocation.
func WithHandlerTimeout(d time.Duration) BusOption {
	return func(b *Bus) { b.timeout = d }
}

// Subscribe registers h for events published under name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
}

// Publish dispatches e to every handler subscribed to its name. It does not
// wait for handlers to complete.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	hs := b.handlers[e.Name()]
	b.mu.RUnlock()

	for _, h := range hs {
		b.run(ctx, h, e)
	}
}

func (b *Bus) run(ctx context.Context, h Handler, e Event) {
	b.wg.Add(1)
	b.sem <- struct{}{}

	go func() {
		// Detach from the publisher's cancellation: an event already
		// published should be handled even if the request that produced it
		// has finished.
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)

		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(hctx, "event: handler panic",
					"event", e.Name(),
					"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
				)
			}

			cancel()
			<-b.sem
			b.wg.Done()
		}()

		if err := h(hctx, e); err != nil {
			slog.ErrorContext(hctx, "event: handle event failed",
				"event", e.Name(),
				"error", err,
			)
		}
	}()
}

// Stop blocks until all in-flight handlers finish.
func (b *Bus) Stop() {
	b.wg.Wait()
}
