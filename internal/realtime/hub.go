package realtime

import (
	"sync"

	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

// ImportProgress is the event published while an import run advances.
type ImportProgress struct {
	RunID      string `json:"run_id"`
	Processed  int    `json:"processed"`
	Imported   int    `json:"imported"`
	Updated    int    `json:"updated"`
	Invalid    int    `json:"invalid"`
	Duplicates int    `json:"duplicates"`
	Done       bool   `json:"done"`
}

// Hub fans import-progress events out to SSE subscribers. Slow subscribers
// drop events rather than blocking publishers.
type Hub struct {
	log  *logger.Logger
	mu   sync.RWMutex
	subs map[chan ImportProgress]struct{}
}

func NewHub(baseLog *logger.Logger) *Hub {
	return &Hub{
		log:  baseLog.With("service", "RealtimeHub"),
		subs: map[chan ImportProgress]struct{}{},
	}
}

func (h *Hub) Subscribe() chan ImportProgress {
	ch := make(chan ImportProgress, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan ImportProgress) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Publish(ev ImportProgress) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Debug("Dropping progress event for slow subscriber", "run_id", ev.RunID)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
