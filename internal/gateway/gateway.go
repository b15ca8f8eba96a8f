// Package gateway holds the set of known LoRaWAN gateway IDs.
//
// The list is refreshed by the gateway ID sync job and read by API
// handlers. It replaces a process-wide static list with a value that is
// constructed once and passed to its users.
package gateway

import (
	"slices"
	"sync"
	"time"
)

// IDList is a concurrency-safe, replace-only list of gateway IDs.
// The zero value is an empty list ready for use.
type IDList struct {
	mu        sync.RWMutex
	ids       []string
	updatedAt time.Time
}

// NewIDList creates an empty list.
func NewIDList() *IDList {
	return &IDList{}
}

// Replace swaps the whole list. The input slice is copied.
func (l *IDList) Replace(ids []string) {
	next := slices.Clone(ids)

	l.mu.Lock()
	l.ids = next
	l.updatedAt = time.Now().UTC()
	l.mu.Unlock()
}

// List returns a copy of the current IDs in the order they were stored.
func (l *IDList) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.ids == nil {
		return []string{}
	}
	return slices.Clone(l.ids)
}

// Contains reports whether id is in the list.
func (l *IDList) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.ids, id)
}

// Snapshot returns a copy of the IDs together with the time of the last
// Replace (zero before the first), read under one lock.
func (l *IDList) Snapshot() ([]string, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := []string{}
	if l.ids != nil {
		ids = slices.Clone(l.ids)
	}
	return ids, l.updatedAt
}
