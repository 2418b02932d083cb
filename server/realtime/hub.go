package realtime

import (
	"context"
	"sync"

	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/rs/zerolog/log"
)

type Handler func(models.ChangeEvent)

// Publisher delivers change events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, evt models.ChangeEvent) error
}

// Hub fans change events out to in-process subscribers. It applies no
// filtering beyond the table name.
type Hub struct {
	mu    sync.RWMutex
	pubMu sync.Mutex
	subs  map[string]map[uint64]Handler
	next  uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Handler)}
}

// Subscribe registers fn for events on table and returns its cancel func.
func (h *Hub) Subscribe(table string, fn Handler) func() {
	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]Handler)
	}
	h.subs[table][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[table], id)
			if len(h.subs[table]) == 0 {
				delete(h.subs, table)
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

// Publish runs every handler for evt.Table in the caller's goroutine.
// Events are delivered in publish order.
func (h *Hub) Publish(ctx context.Context, evt models.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[evt.Table]))
	for _, fn := range h.subs[evt.Table] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	log.Debug().Str("table", evt.Table).Str("type", string(evt.Type)).Int("subscribers", len(handlers)).Msg("publish change")
	for _, fn := range handlers {
		fn(evt)
	}
	return nil
}
