// Package component implements ComponentName (an interned string
// identifying a logical column) and the per-store Datatype registry
// that enforces spec.md invariant 5: a ComponentName's datatype is
// fixed for the lifetime of the store that first registered it.
//
// The universe of component names and datatypes is open (spec.md
// §3); this package only needs a stable identity to compare against,
// never a concrete decoder. Loosely shaped after the donor's
// pkg/resource/badger/index.go IndexManager: register-once semantics
// and read-mostly lookups, here over a single map with no lock of its
// own (the owning store synchronizes access).
package component

import "fmt"

// Name is an interned ComponentName, e.g. "position3d" or
// "image.buffer".
type Name string

// Datatype identifies the element type carried by a Cell for some
// component. The core treats it as opaque beyond equality: two
// Datatype values are the same type iff they compare equal with ==.
// Embedders typically use a small comparable struct or a named
// string constant as their concrete Datatype.
type Datatype interface {
	// DatatypeName returns a human-readable identifier, used only in
	// error messages and logs.
	DatatypeName() string
}

// Registry tracks the datatype registered for each ComponentName
// within one store. The first insertion of a component registers its
// datatype; every later insertion of the same component must match.
type Registry struct {
	byName map[Name]Datatype
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[Name]Datatype)}
}

// RegisterOrCheck registers dt for name if name is unregistered, or
// validates that dt matches the already-registered datatype. Returns
// a *MismatchError if name is registered with a different datatype.
//
// Callers (pkg/store) hold the store's own write lock around calls to
// this method; Registry itself is not independently synchronized,
// matching the donor's convention of pushing locking up to the owning
// facade rather than duplicating it at every layer.
func (r *Registry) RegisterOrCheck(name Name, dt Datatype) error {
	if dt == nil {
		return fmt.Errorf("component: cannot register nil datatype for %q", name)
	}
	existing, ok := r.byName[name]
	if !ok {
		r.byName[name] = dt
		return nil
	}
	if existing != dt {
		return &MismatchError{Component: name, Registered: existing, Got: dt}
	}
	return nil
}

// Lookup returns the datatype registered for name, if any.
func (r *Registry) Lookup(name Name) (Datatype, bool) {
	dt, ok := r.byName[name]
	return dt, ok
}

// MismatchError reports that an inserted cell's datatype differs from
// the one already registered for its component (spec.md §7,
// DatatypeMismatch).
type MismatchError struct {
	Component  Name
	Registered Datatype
	Got        Datatype
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("component %q: datatype mismatch: registered %s, got %s",
		e.Component, e.Registered.DatatypeName(), e.Got.DatatypeName())
}
