// Package registry keeps the table of MAS client instances that want event
// reports, keyed by instance id.
package registry

import (
	"reflect"
	"sort"
	"sync"

	"mnsd/internal/eventreport"
)

// Listener receives event reports for one instance. Deliver is called with
// the registry lock held and must only hand the report off (enqueue); it
// must not block.
type Listener interface {
	Deliver(eventreport.Report)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(eventreport.Report)

func (f ListenerFunc) Deliver(r eventreport.Report) { f(r) }

// Registry maps instance ids to listeners. One mutex covers the whole map,
// so a dispatch never observes a half-applied register or unregister.
type Registry struct {
	mu        sync.Mutex
	listeners map[int]Listener
}

func New() *Registry {
	return &Registry{listeners: make(map[int]Listener)}
}

// Register inserts or replaces the listener for id and reports whether the
// registry was empty before the call.
func (r *Registry) Register(id int, l Listener) (wasEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wasEmpty = len(r.listeners) == 0
	r.listeners[id] = l
	return wasEmpty
}

// Unregister removes id. Removing an unknown id is a no-op. nowEmpty is
// true when no registrations remain after the call.
func (r *Registry) Unregister(id int) (removed, nowEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, removed = r.listeners[id]
	delete(r.listeners, id)
	return removed, len(r.listeners) == 0
}

// UnregisterListener removes id only while l is still the listener
// registered for it, so a consumer that was replaced does not remove its
// successor.
func (r *Registry) UnregisterListener(id int, l Listener) (removed, nowEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.listeners[id]
	if ok && sameListener(cur, l) {
		delete(r.listeners, id)
		removed = true
	}
	return removed, len(r.listeners) == 0
}

// sameListener compares by identity. Listeners of uncomparable dynamic
// type, such as ListenerFunc, never match.
func sameListener(a, b Listener) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Dispatch hands report to the listener registered for id and reports
// whether one was found.
func (r *Registry) Dispatch(id int, report eventreport.Report) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listeners[id]
	if !ok || l == nil {
		return false
	}
	l.Deliver(report)
	return true
}

// Clear drops every registration and returns the ids that were removed.
func (r *Registry) Clear() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := sortedKeys(r.listeners)
	r.listeners = make(map[int]Listener)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

func (r *Registry) Has(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.listeners[id]
	return ok
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.listeners)
}

func sortedKeys(m map[int]Listener) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
