// Package events distributes domain events to in-process subscribers
// and external sinks. Publishing is fire-and-forget: a slow or failed
// consumer never blocks the operation that emitted the event.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types emitted by the reward engine.
const (
	TypePointEarned      = "point-earned"
	TypeRedemptionResult = "redemption-result"
)

// Event is one domain notification. Payload holds the type-specific
// body and must be JSON-serializable.
type Event struct {
	Type       string      `json:"type"`
	FamilyID   string      `json:"familyId,omitempty"`
	ChildID    string      `json:"childId,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// Bus fans events out to subscriber channels. Sends never block: when a
// subscriber's buffer is full the event is dropped for that subscriber
// and logged.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
	logger *zap.Logger
}

// NewBus constructs a Bus whose subscriber channels hold buffer events.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Publish delivers the event to every subscriber. Nil-safe so callers
// can hold an optional bus without guarding each publish.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event subscriber lagging, dropping event",
				zap.Int("subscriber", id),
				zap.String("type", event.Type))
		}
	}
}

// Subscribe registers a new subscriber and returns its channel together
// with a cancel func that removes the subscription and closes the
// channel. Cancel is idempotent.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// SubscriberCount reports the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
