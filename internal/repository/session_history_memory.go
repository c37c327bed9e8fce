package repository

import (
	"container/list"
	"context"
	"sync"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
)

type sessionLog struct {
	id      string
	entries []models.HistoryEntry // oldest first
}

// MemorySessionHistory keeps the last capacity entries per session and at
// most maxSessions sessions, evicting the least recently used.
type MemorySessionHistory struct {
	capacity    int
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*list.Element
	order    *list.List
}

func NewMemorySessionHistory(capacity, maxSessions int) *MemorySessionHistory {
	if capacity <= 0 {
		capacity = 10
	}
	return &MemorySessionHistory{
		capacity:    capacity,
		maxSessions: maxSessions,
		sessions:    make(map[string]*list.Element),
		order:       list.New(),
	}
}

func (h *MemorySessionHistory) Append(_ context.Context, sessionID string, e models.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	el, ok := h.sessions[sessionID]
	if !ok {
		el = h.order.PushFront(&sessionLog{id: sessionID})
		h.sessions[sessionID] = el
		h.evict()
	} else {
		h.order.MoveToFront(el)
	}
	s := el.Value.(*sessionLog)
	s.entries = append(s.entries, e)
	if over := len(s.entries) - h.capacity; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (h *MemorySessionHistory) Recent(_ context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	el, ok := h.sessions[sessionID]
	if !ok {
		return []models.HistoryEntry{}, nil
	}
	h.order.MoveToFront(el)
	s := el.Value.(*sessionLog)
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.HistoryEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Sessions returns the number of tracked sessions.
func (h *MemorySessionHistory) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *MemorySessionHistory) evict() {
	if h.maxSessions <= 0 {
		return
	}
	for h.order.Len() > h.maxSessions {
		back := h.order.Back()
		h.order.Remove(back)
		delete(h.sessions, back.Value.(*sessionLog).id)
	}
}
