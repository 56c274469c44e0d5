package events

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

const (
	historyLimit = 256
	queueSize    = 1024
)

// EventListener processes events
type EventListener interface {
	HandleEvent(event Event) error
	Priority() int
	ID() string
}

// Bus manages event distribution. Emit dispatches synchronously in the
// caller's goroutine; EmitAsync enqueues onto a single dispatcher
// goroutine, which is what serializes Q-table writes from concurrently
// ticking games. A bounded ring of recent events is kept for
// diagnostics.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
	history   []Event
	historyAt int

	queue chan Event
	stop  chan struct{}
	done  chan struct{}

	log *zap.Logger
}

// NewBus creates a new event bus and starts its dispatcher.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Bus{
		listeners: make(map[EventType][]EventListener),
		history:   make([]Event, 0, historyLimit),
		queue:     make(chan Event, queueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       logger,
	}
	go b.dispatchLoop()
	return b
}

// Subscribe adds a listener for a specific event type
func (b *Bus) Subscribe(eventType EventType, listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners[eventType] = append(b.listeners[eventType], listener)

	sort.SliceStable(b.listeners[eventType], func(i, j int) bool {
		return b.listeners[eventType][i].Priority() < b.listeners[eventType][j].Priority()
	})

	b.log.Debug("event bus: subscribed",
		zap.String("listener", listener.ID()),
		zap.String("event", string(eventType)),
		zap.Int("priority", listener.Priority()))
}

// Unsubscribe removes a listener
func (b *Bus) Unsubscribe(eventType EventType, listenerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners := b.listeners[eventType]
	for i, l := range listeners {
		if l.ID() != listenerID {
			continue
		}
		b.listeners[eventType] = append(listeners[:i], listeners[i+1:]...)
		b.log.Debug("event bus: unsubscribed",
			zap.String("listener", listenerID),
			zap.String("event", string(eventType)))
		return
	}
}

// Emit sends an event to all registered listeners in priority order.
// Listener errors are logged and do not stop propagation.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	listeners := make([]EventListener, len(b.listeners[event.GetType()]))
	copy(listeners, b.listeners[event.GetType()])
	b.mu.RUnlock()

	b.record(event)

	for _, listener := range listeners {
		if err := listener.HandleEvent(event); err != nil {
			b.log.Warn("event bus: listener failed",
				zap.String("listener", listener.ID()),
				zap.String("event", string(event.GetType())),
				zap.Error(err))
		}
	}
}

// EmitAsync enqueues an event for the dispatcher goroutine. Callers
// holding a game mutex use this so listener work never runs under the
// lock. Events are dropped with a warning if the queue is full.
func (b *Bus) EmitAsync(event Event) {
	select {
	case b.queue <- event:
	default:
		b.log.Warn("event bus: queue full, dropping event",
			zap.String("event", string(event.GetType())))
	}
}

// History returns a copy of the retained recent events, oldest first.
func (b *Bus) History() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.history))
	if len(b.history) == historyLimit {
		out = append(out, b.history[b.historyAt:]...)
		out = append(out, b.history[:b.historyAt]...)
	} else {
		out = append(out, b.history...)
	}
	return out
}

// Clear removes all listeners
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = make(map[EventType][]EventListener)
}

// Close stops the dispatcher after draining queued events.
func (b *Bus) Close() {
	close(b.stop)
	<-b.done
}

func (b *Bus) dispatchLoop() {
	defer close(b.done)
	for {
		select {
		case event := <-b.queue:
			b.Emit(event)
		case <-b.stop:
			for {
				select {
				case event := <-b.queue:
					b.Emit(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) record(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.history) < historyLimit {
		b.history = append(b.history, event)
		return
	}
	b.history[b.historyAt] = event
	b.historyAt = (b.historyAt + 1) % historyLimit
}
