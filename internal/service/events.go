package service

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

const defaultEventBuffer = 16

// EventHub fans commit events out to subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type EventHub struct {
	logger *zap.Logger
	buffer int

	mu      sync.RWMutex
	subs    map[uuid.UUID]chan domain.CommitEvent
	dropped atomic.Int64
}

func NewEventHub(buffer int, logger *zap.Logger) *EventHub {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &EventHub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[uuid.UUID]chan domain.CommitEvent),
	}
}

// Subscribe registers a new subscriber. The channel is closed by Unsubscribe.
func (h *EventHub) Subscribe() (uuid.UUID, <-chan domain.CommitEvent) {
	id := uuid.New()
	ch := make(chan domain.CommitEvent, h.buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	h.logger.Debug("event subscriber added", zap.String("subscriber_id", id.String()))
	return id, ch
}

func (h *EventHub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Publish delivers ev to every subscriber with room and returns how many
// subscribers missed it.
func (h *EventHub) Publish(ev domain.CommitEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	missed := 0
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			missed++
			h.logger.Warn("dropping commit event for slow subscriber",
				zap.String("subscriber_id", id.String()),
				zap.String("event_id", ev.ID.String()),
			)
		}
	}
	if missed > 0 {
		h.dropped.Add(int64(missed))
		eventsDroppedTotal.Add(float64(missed))
	}
	return missed
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports the number of undelivered events since start.
func (h *EventHub) Dropped() int64 {
	return h.dropped.Load()
}
