package repository

import (
	"context"
	"sync"

	"RiskWatch/internal/domain/models"
	domrepo "RiskWatch/internal/domain/repository"
	applogger "RiskWatch/pkg/logger"
)

const (
	// NotificationsKey is the KV key holding the history list.
	NotificationsKey = "notifications"
	// DefaultHistoryCapacity bounds the history; older entries are evicted.
	DefaultHistoryCapacity = 100
)

// NotificationHistory is a bounded, newest-first list of notifications with read state.
type NotificationHistory struct {
	mu       sync.Mutex
	doc      jsonDoc[[]models.Notification]
	items    []models.Notification
	loaded   bool
	dirty    bool
	capacity int
}

func NewNotificationHistory(kv domrepo.KVStore, capacity int, l *applogger.Logger) *NotificationHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &NotificationHistory{
		doc:      jsonDoc[[]models.Notification]{kv: kv, key: NotificationsKey, l: l},
		capacity: capacity,
	}
}

// ensureLoaded merges entries recorded while storage was unreadable ahead of the stored ones.
func (h *NotificationHistory) ensureLoaded(ctx context.Context) {
	if h.loaded {
		return
	}
	stored, ok := h.doc.load(ctx)
	if !ok {
		return
	}
	items := h.items
	seen := make(map[string]struct{}, len(items))
	for _, n := range items {
		seen[n.ID] = struct{}{}
	}
	for _, n := range stored {
		if _, dup := seen[n.ID]; !dup {
			items = append(items, n)
		}
	}
	if len(items) > h.capacity {
		items = items[:h.capacity]
	}
	h.items = items
	h.loaded = true
	if h.dirty {
		h.dirty = false
		h.save(ctx)
	}
}

// Append adds ns so that the last element ends up first, then evicts past capacity.
func (h *NotificationHistory) Append(ctx context.Context, ns ...models.Notification) {
	if len(ns) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureLoaded(ctx)

	merged := make([]models.Notification, 0, len(ns)+len(h.items))
	for i := len(ns) - 1; i >= 0; i-- {
		merged = append(merged, ns[i])
	}
	merged = append(merged, h.items...)
	if len(merged) > h.capacity {
		merged = merged[:h.capacity]
	}
	h.items = merged
	h.persist(ctx)
}

// List returns up to limit notifications, newest first. limit <= 0 means no limit.
func (h *NotificationHistory) List(ctx context.Context, unreadOnly bool, limit int) []models.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureLoaded(ctx)

	out := make([]models.Notification, 0, len(h.items))
	for _, n := range h.items {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// UnreadCount counts notifications not yet read.
func (h *NotificationHistory) UnreadCount(ctx context.Context) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureLoaded(ctx)

	c := 0
	for _, n := range h.items {
		if !n.Read {
			c++
		}
	}
	return c
}

// MarkRead flags one notification as read. It reports false for unknown ids.
func (h *NotificationHistory) MarkRead(ctx context.Context, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureLoaded(ctx)

	for i := range h.items {
		if h.items[i].ID == id {
			if !h.items[i].Read {
				h.items[i].Read = true
				h.persist(ctx)
			}
			return true
		}
	}
	return false
}

// MarkAllRead returns how many notifications changed.
func (h *NotificationHistory) MarkAllRead(ctx context.Context) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureLoaded(ctx)

	n := 0
	for i := range h.items {
		if !h.items[i].Read {
			h.items[i].Read = true
			n++
		}
	}
	if n > 0 {
		h.persist(ctx)
	}
	return n
}

// Clear empties the history, in storage too, whether or not it was readable.
func (h *NotificationHistory) Clear(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = nil
	h.loaded = true
	h.dirty = false
	h.save(ctx)
}

// persist never overwrites a document that has not been read yet.
func (h *NotificationHistory) persist(ctx context.Context) {
	if !h.loaded {
		h.dirty = true
		h.ensureLoaded(ctx)
		return
	}
	h.save(ctx)
}

func (h *NotificationHistory) save(ctx context.Context) {
	items := h.items
	if items == nil {
		items = []models.Notification{}
	}
	h.doc.save(ctx, items)
}
