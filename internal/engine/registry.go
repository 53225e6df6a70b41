package engine

import (
	"sync"

	"github.com/Dolu89/ghost-relay/internal/nostr"
)

// MaxSubscriptions is the per-session subscription cap.
const MaxSubscriptions = 5

// Subscription is a named standing filter set owned by one session.
type Subscription struct {
	ID      string
	Filters nostr.Filters
}

// Registry holds a session's open subscriptions in insertion order.
//
// Thread-safety: safe for concurrent use. Callbacks passed to ForEach run
// with the registry lock held and must not call back into the registry.
type Registry struct {
	mu   sync.Mutex
	subs []Subscription
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make([]Subscription, 0, MaxSubscriptions)}
}

// Open registers a subscription.
//
// Capacity is checked before the id: a full registry rejects with
// ErrCodeTooManySubscriptions even when the id is already open.
func (r *Registry) Open(id string, filters nostr.Filters) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.subs) >= MaxSubscriptions {
		return &SubscriptionError{Code: ErrCodeTooManySubscriptions, SubscriptionID: id}
	}
	if r.indexOf(id) >= 0 {
		return &SubscriptionError{Code: ErrCodeDuplicateSubscription, SubscriptionID: id}
	}

	r.subs = append(r.subs, Subscription{ID: id, Filters: filters})
	return nil
}

// Close removes the subscription id. Returns false if it was not open.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.subs = append(r.subs[:i], r.subs[i+1:]...)
	return true
}

// Get returns the subscription id, if open.
func (r *Registry) Get(id string) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		return r.subs[i], true
	}
	return Subscription{}, false
}

// ForEach calls fn for each subscription in insertion order until fn
// returns false.
func (r *Registry) ForEach(fn func(Subscription) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if !fn(sub) {
			return
		}
	}
}

// Match returns the first subscription, in insertion order, whose filters
// match ev.
func (r *Registry) Match(ev nostr.Event) (Subscription, bool) {
	var (
		found Subscription
		ok    bool
	)
	r.ForEach(func(sub Subscription) bool {
		if sub.Filters.Match(ev) {
			found, ok = sub, true
			return false
		}
		return true
	})
	return found, ok
}

// Len returns the number of open subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// IDs returns the open subscription ids in insertion order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(r.subs))
	for i, sub := range r.subs {
		ids[i] = sub.ID
	}
	return ids
}

// Clear removes every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = r.subs[:0]
}

func (r *Registry) indexOf(id string) int {
	for i, sub := range r.subs {
		if sub.ID == id {
			return i
		}
	}
	return -1
}
