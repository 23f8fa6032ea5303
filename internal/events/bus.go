package events

import (
	"log/slog"
	"sync"

	"mediafetch/internal/domain"
)

// Handler reacts to one domain event. Handlers run synchronously on the
// publisher's goroutine, in registration order.
type Handler func(domain.Event)

// Bus is a kind-indexed synchronous publisher. Delivery is at-most-once
// and best-effort: a panicking handler is logged and never prevents the
// remaining handlers from running.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe appends the handler to the list for exactly that event kind.
// There is no inheritance-based dispatch; cross-cutting handlers use
// SubscribeAll.
func (b *Bus) Subscribe(kind string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[kind] = append(b.handlers[kind], h)
	b.mu.Unlock()
}

// SubscribeAll registers the handler for every event variant.
func (b *Bus) SubscribeAll(h Handler) {
	for _, kind := range domain.EventKinds {
		b.Subscribe(kind, h)
	}
}

// Publish fans the event out to the handlers registered for its kind.
// The handler list is snapshotted under the lock; invocation runs
// outside it so handlers may themselves subscribe or publish.
func (b *Bus) Publish(event domain.Event) {
	if event == nil {
		return
	}
	b.mu.Lock()
	registered := b.handlers[event.Kind()]
	snapshot := make([]Handler, len(registered))
	copy(snapshot, registered)
	b.mu.Unlock()

	for _, handler := range snapshot {
		b.dispatch(handler, event)
	}
}

func (b *Bus) dispatch(handler Handler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				slog.String("event", event.Kind()),
				slog.String("jobId", string(event.Job())),
				slog.Any("panic", r),
			)
		}
	}()
	handler(event)
}
