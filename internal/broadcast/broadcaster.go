package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/chirpwatch/chirpwatch/internal/metrics"
)

// Event types produced by the rest of the system.
const (
	EventConnected = "connected"
	EventState     = "state"
	EventNewPost   = "new_post"
	EventError     = "error"
)

// sendBuffer bounds how far a subscriber may fall behind before it is
// dropped. Fan-out never blocks on a slow consumer.
const sendBuffer = 16

// Message is one live-update event, serialized exactly once per emit.
type Message struct {
	Event string
	Data  []byte
}

// Subscriber is a connected consumer of the live-update stream. Read from C
// until it is closed; call Broadcaster.Unsubscribe when the underlying
// connection goes away.
type Subscriber struct {
	ID uuid.UUID
	C  <-chan Message

	ch        chan Message
	closeOnce sync.Once
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

// Broadcaster maintains the set of live-update subscribers and fans
// serialized events out to all of them. Subscribers only see events emitted
// while they are connected; nothing is buffered or replayed.
type Broadcaster struct {
	logger    *slog.Logger
	collector *metrics.Collector

	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscriber
	closed bool
}

// New creates a broadcaster with no subscribers.
func New(logger *slog.Logger, collector *metrics.Collector) *Broadcaster {
	return &Broadcaster{
		logger:    logger,
		collector: collector,
		subs:      make(map[uuid.UUID]*Subscriber),
	}
}

// Subscribe registers a new subscriber handle. Returns nil after Close.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	ch := make(chan Message, sendBuffer)
	sub := &Subscriber{ID: uuid.New(), C: ch, ch: ch}
	b.subs[sub.ID] = sub

	b.collector.SetSubscribers(len(b.subs))
	b.logger.Info("subscriber connected", "subscriber_id", sub.ID, "total", len(b.subs))
	return sub
}

// Unsubscribe removes a subscriber. Safe to call more than once, and safe to
// call for a subscriber the broadcaster already dropped.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	_, present := b.subs[sub.ID]
	delete(b.subs, sub.ID)
	remaining := len(b.subs)
	b.mu.Unlock()

	sub.close()

	if present {
		b.collector.SetSubscribers(remaining)
		b.logger.Info("subscriber disconnected", "subscriber_id", sub.ID, "total", remaining)
	}
}

// Emit serializes the payload once and writes it to every currently
// subscribed handle. A subscriber that cannot keep up is dropped rather than
// retried; its channel is closed so the owning handler unwinds.
func (b *Broadcaster) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	msg := Message{Event: event, Data: data}

	b.mu.Lock()
	var slow []*Subscriber
	for _, sub := range b.subs {
		select {
		case sub.ch <- msg:
		default:
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		delete(b.subs, sub.ID)
	}
	remaining := len(b.subs)
	b.mu.Unlock()

	for _, sub := range slow {
		b.logger.Warn("dropping slow subscriber", "subscriber_id", sub.ID)
		sub.close()
	}
	if len(slow) > 0 {
		b.collector.SetSubscribers(remaining)
	}

	b.collector.IncEventEmitted(event)
}

// Count returns the number of connected subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops all subscribers and rejects future subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[uuid.UUID]*Subscriber)
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	b.collector.SetSubscribers(0)
}
