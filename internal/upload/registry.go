// Package upload tracks in-flight photo batches between issuing upload URLs
// and the guest reporting the upload complete.
package upload

import (
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// Pending is a batch whose photos have been issued upload URLs.
type Pending struct {
	BatchID    string
	RoomID     string
	CheckoutID string
	GuestID    string
	Keys       []string
	CreatedAt  time.Time
}

type entry struct {
	pending Pending
	settled atomic.Bool
}

// Registry maps batch ids to pending batches. Entries live as long as the
// upload URLs they were issued with; an entry that expires before it is
// settled is handed to the expiry callback.
type Registry struct {
	items *cache.Cache
	ttl   time.Duration
}

// NewRegistry creates a registry whose entries expire after ttl. onExpire may
// be nil.
func NewRegistry(ttl, cleanupInterval time.Duration, onExpire func(Pending)) *Registry {
	items := cache.New(ttl, cleanupInterval)
	items.OnEvicted(func(_ string, v interface{}) {
		e := v.(*entry)
		if e.settled.Load() || onExpire == nil {
			return
		}
		onExpire(e.pending)
	})
	return &Registry{items: items, ttl: ttl}
}

// Register records a batch.
func (r *Registry) Register(p Pending) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.items.Set(p.BatchID, &entry{pending: p}, r.ttl)
}

// Lookup returns the pending batch if it has not expired or been settled.
func (r *Registry) Lookup(batchID string) (Pending, bool) {
	v, ok := r.items.Get(batchID)
	if !ok {
		return Pending{}, false
	}
	e := v.(*entry)
	if e.settled.Load() {
		return Pending{}, false
	}
	return e.pending, true
}

// Settle removes a batch that completed or failed through the API. It does
// not trigger the expiry callback.
func (r *Registry) Settle(batchID string) {
	if v, ok := r.items.Get(batchID); ok {
		v.(*entry).settled.Store(true)
	}
	r.items.Delete(batchID)
}

// Len is the number of tracked batches, including expired ones not yet
// cleaned up.
func (r *Registry) Len() int {
	return r.items.ItemCount()
}

// Flush expires every entry now, running the expiry callback for unsettled
// batches. Entries past their TTL that the janitor has not swept yet are
// evicted first, since Items skips them.
func (r *Registry) Flush() {
	r.items.DeleteExpired()
	for id, item := range r.items.Items() {
		if e := item.Object.(*entry); !e.settled.Load() {
			r.items.Delete(id)
		}
	}
}
