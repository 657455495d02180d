package notify

import (
	"sync"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

// BatchSnapshot is the per-batch slice of a change notification.
type BatchSnapshot struct {
	ID      string             `json:"id"`
	QRCode  string             `json:"qr_code"`
	Species string             `json:"species"`
	Status  domain.BatchStatus `json:"status"`
}

// BatchUpdate is the typed "batch collection changed" notification delivered
// to every open session. Late subscribers get no replay; they re-fetch state
// through the read interface instead.
type BatchUpdate struct {
	QRCode    string             `json:"qr_code"`
	Status    domain.BatchStatus `json:"status"`
	ChangedAt time.Time          `json:"changed_at"`
	Batches   []BatchSnapshot    `json:"batches"`
}

// Hub is the in-process publish/subscribe channel for batch updates.
// Delivery is best-effort and at-most-once per change.
type Hub struct {
	mu          sync.RWMutex
	log         *logger.Logger
	subscribers map[int64]func(BatchUpdate)
	nextID      int64
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:         log.With("component", "BatchHub"),
		subscribers: make(map[int64]func(BatchUpdate)),
	}
}

// Subscribe registers a callback invoked on every published update. The
// returned function removes the subscription; calling it twice is harmless.
func (h *Hub) Subscribe(fn func(BatchUpdate)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subscribers[id] = fn
	h.log.Debug("session subscribed", "subscriberID", id)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers, id)
	}
}

// Publish delivers update to every currently-subscribed callback. Callbacks
// run on the publisher's goroutine; a panicking subscriber is dropped rather
// than taking the publisher down.
func (h *Hub) Publish(update BatchUpdate) {
	h.mu.RLock()
	fns := make([]func(BatchUpdate), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		h.deliver(fn, update)
	}
}

func (h *Hub) deliver(fn func(BatchUpdate), update BatchUpdate) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("subscriber panicked during delivery", "panic", r)
		}
	}()
	fn(update)
}

// SubscriberCount is exposed for status endpoints.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
