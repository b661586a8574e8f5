package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus fans events out to in-process subscribers and persists them to the
// event log. Delivery never blocks: a subscriber whose channel is full
// misses the event and the drop is counted.
type Bus struct {
	mu      sync.RWMutex
	byType  map[string][]chan Event
	all     []chan Event
	log     *EventLog // may be nil
	logger  *slog.Logger
	dropped atomic.Uint64
	closed  bool
}

// NewBus creates a bus. log may be nil to skip persistence.
func NewBus(log *EventLog, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		byType: make(map[string][]chan Event),
		log:    log,
		logger: logger.With("component", "bus"),
	}
}

// Publish persists e and hands it to every matching subscriber. A failed
// write to the event log is logged, not returned.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.log != nil {
		if _, err := b.log.Append(ctx, e); err != nil {
			b.logger.Error("failed to persist event", "type", e.EventType(), "error", err)
		}
	}

	// The read lock is held while sending so Close cannot close a channel
	// mid-delivery.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, ch := range b.byType[e.EventType()] {
		b.deliver(ch, e)
	}
	for _, ch := range b.all {
		b.deliver(ch, e)
	}
	return nil
}

func (b *Bus) deliver(ch chan Event, e Event) {
	select {
	case ch <- e:
	default:
		b.dropped.Add(1)
		b.logger.Warn("subscriber full, dropping event",
			"type", e.EventType(),
			"entity_type", e.EntityType(),
			"entity_id", e.EntityID())
	}
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe returns a channel for events of one type.
func (b *Bus) Subscribe(eventType string, bufferSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.byType[eventType] = append(b.byType[eventType], ch)
	return ch
}

// SubscribeAll returns a channel for every event.
func (b *Bus) SubscribeAll(bufferSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.all = append(b.all, ch)
	return ch
}

// SubscribeEntity streams the events of one entity, such as a conversion
// task. The channel closes after cancel is called or the bus closes.
//
// One slot of the buffer is reserved for the entity's terminal event, so a
// slow reader may miss progress but always sees the task finish.
func (b *Bus) SubscribeEntity(entityType, entityID string, bufferSize int) (<-chan Event, func()) {
	if bufferSize < 2 {
		bufferSize = 2
	}
	src := b.SubscribeAll(bufferSize * 10)
	out := make(chan Event, bufferSize)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for e := range src {
			if e.EntityType() != entityType || e.EntityID() != entityID {
				continue
			}
			if isTerminal(e) {
				select {
				case out <- e:
				case <-done:
					return
				}
				continue
			}
			// Only this goroutine sends on out, so the length check holds.
			if len(out) >= cap(out)-1 {
				b.dropped.Add(1)
				continue
			}
			out <- e
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			b.Unsubscribe(src)
		})
	}
}

func isTerminal(e Event) bool {
	switch e.EventType() {
	case EventConversionCompleted, EventConversionFailed:
		return true
	}
	return false
}

// Unsubscribe removes and closes a channel returned by Subscribe or
// SubscribeAll. Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.byType {
		if i := indexOf(subs, ch); i >= 0 {
			sub := subs[i]
			b.byType[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
	if i := indexOf(b.all, ch); i >= 0 {
		sub := b.all[i]
		b.all = append(b.all[:i], b.all[i+1:]...)
		close(sub)
	}
}

func indexOf(subs []chan Event, ch <-chan Event) int {
	for i, sub := range subs {
		if sub == ch {
			return i
		}
	}
	return -1
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.byType {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.byType = nil
	for _, ch := range b.all {
		close(ch)
	}
	b.all = nil
	return nil
}
