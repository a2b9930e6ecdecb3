// Package storeevent implements the store's event stream and
// subscriber registry (spec.md §4.5/§5, component C5): a dense,
// 1-indexed, per-store ordered sequence of diffs delivered
// synchronously on the mutator's goroutine.
package storeevent

import (
	"sync"

	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/timeline"
)

// StoreID identifies the store that produced an event, so a
// subscriber listening to several stores can demultiplex.
type StoreID string

// Generation is the store's (insert_id, gc_id) mutation counter pair
// at the time an event was emitted.
type Generation struct {
	InsertID uint64
	GcID     uint64
}

// Kind distinguishes an Addition diff from a Deletion diff.
type Kind int

const (
	Addition Kind = iota
	Deletion
)

func (k Kind) String() string {
	if k == Addition {
		return "Addition"
	}
	return "Deletion"
}

// Diff describes one logical mutation: a row entering or leaving the
// set of queryable data. A Deletion's fields are identical to the
// corresponding prior Addition's (spec.md §4.5).
type Diff struct {
	Kind       Kind
	RowID      rowid.RowID
	TimePoint  timeline.TimePoint
	EntityPath entitypath.EntityPath
	Cells      map[component.Name]cell.Cell
}

// Event is one entry on the store's event stream.
type Event struct {
	StoreID    StoreID
	Generation Generation
	EventID    uint64
	Diff       Diff
}

// Subscriber receives events in event-id order, synchronously with
// the mutation that produced them. Implementations must not call back
// into the store's mutating API (spec.md §9: cycle-free event graph);
// cross-component side effects must be deferred.
type Subscriber func(Event)

// Handle identifies a registered subscriber for later Unsubscribe.
type Handle uint64

// Registry fans a store's event stream out to its subscribers. It
// does not assign event IDs or generations itself — the facade (C4)
// does that and calls Dispatch with a fully-formed Event.
type Registry struct {
	mu   sync.Mutex
	next Handle
	subs map[Handle]Subscriber
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[Handle]Subscriber)}
}

// Subscribe registers a subscriber and returns a handle for later
// removal. Subscribers registered after event N observe events
// N+1, N+2, …; the first event_id they see lets them detect a missed
// prefix (spec.md §4.5/§6).
func (r *Registry) Subscribe(sub Subscriber) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.subs[h] = sub
	return h
}

// Unsubscribe removes a previously registered subscriber. Unsubscribing
// an unknown or already-removed handle is a no-op.
func (r *Registry) Unsubscribe(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, h)
}

// Dispatch delivers ev to every currently registered subscriber,
// synchronously, in an unspecified order among subscribers that may
// differ from one call to the next.
// Dispatch must be called by the mutator before it returns to its own
// caller, and must complete before the facade method that triggered
// it returns (spec.md §4.5).
func (r *Registry) Dispatch(ev Event) {
	r.mu.Lock()
	subs := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s(ev)
	}
}
