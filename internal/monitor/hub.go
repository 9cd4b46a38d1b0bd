// Package monitor streams journal entries to websocket observers so a run can
// be watched live without tailing the journal file.
package monitor

import (
	"sync"

	"ticktaker/internal/journal"
)

type Subscription struct {
	C chan journal.Entry
}

type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(buffer int) *Subscription {
	sub := &Subscription{C: make(chan journal.Entry, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.C)
	}
	h.mu.Unlock()
}

// Broadcast sends the entry to every subscriber. A slow subscriber's entry is
// dropped rather than stalling the dispatch path.
func (h *Hub) Broadcast(e journal.Entry) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.C <- e:
		default:
		}
	}
}
