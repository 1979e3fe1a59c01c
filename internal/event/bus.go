package event

import (
	"sync"

	"go.uber.org/zap"
)

// Listener is the event-listener contract from spec §4.5: it may mutate e
// in place and its error is logged and ignored — it never stops subsequent
// listeners nor tears down the session.
type Listener func(e *Event) error

// Bus dispatches Events to listeners in registration order. Registration is
// expected to happen before the proxy starts accepting connections (spec §5:
// "append-only before start(), read-only thereafter"), but AddListener
// remains safe to call concurrently with Fire.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// AddListener appends a listener, to be invoked after all previously
// registered listeners for every subsequent event.
func (b *Bus) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Fire dispatches e to every registered listener in order, each seeing the
// mutations of the ones before it. A listener error is logged and does not
// prevent later listeners from running.
func (b *Bus) Fire(e *Event) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	for _, l := range listeners {
		if err := l(e); err != nil {
			zap.L().Error("event listener returned an error",
				zap.Stringer("event", e.Kind), zap.Error(err))
		}
	}
}
