// Package cell implements Cell: an immutable, opaque, shared-ownership
// payload carrying one component's data for one row.
//
// spec.md §9 deliberately keeps the cell's concrete datatype opaque to
// the core: the core only needs (a) a stable datatype identity per
// ComponentName, (b) a length, (c) a byte-size estimate, and (d)
// equality-of-identity for deduplicating shared references. Decoding
// into concrete Arrow-like arrays is left to the consumer. No arrow
// library appears anywhere in the retrieval pack, which confirms this
// is the intended shape rather than a stopgap.
package cell

import "github.com/loglake/loglake/pkg/component"

// Cell is a small value type wrapping a pointer to the actual payload.
// Copies of a Cell share the same underlying data pointer: the store,
// a query cache entry, and a subscriber's own buffer can all hold a
// Cell for the same logical value without copying its payload, and
// the payload is released once Go's garbage collector determines no
// Cell still references it. There is deliberately no manual refcount:
// spec.md §9 only requires that the *last* holder's release frees the
// buffer, a guarantee the language's own GC already provides for a
// pointer with no remaining copies.
type Cell struct {
	data *payload
}

type payload struct {
	name     component.Name
	datatype component.Datatype
	value    interface{}
	length   int
	byteSize int64
}

// New constructs a Cell. value is opaque to this package; byteSize is
// an estimate of the payload's retained memory, used by the garbage
// collector (pkg/gc) to measure progress toward a target budget.
func New(name component.Name, dt component.Datatype, value interface{}, length int, byteSize int64) Cell {
	return Cell{data: &payload{
		name:     name,
		datatype: dt,
		value:    value,
		length:   length,
		byteSize: byteSize,
	}}
}

// ComponentName returns the component this cell belongs to.
func (c Cell) ComponentName() component.Name { return c.data.name }

// Datatype returns the cell's registered element datatype.
func (c Cell) Datatype() component.Datatype { return c.data.datatype }

// Len returns the cell's array length (may be 0).
func (c Cell) Len() int { return c.data.length }

// IsEmpty reports whether the cell carries zero elements.
func (c Cell) IsEmpty() bool { return c.data.length == 0 }

// ByteSize estimates the cell's retained memory footprint in bytes,
// used by pkg/gc to decide when a target budget has been met.
func (c Cell) ByteSize() int64 { return c.data.byteSize }

// Value returns the opaque payload; decoding it into a concrete type
// is the consumer's responsibility, not the core's.
func (c Cell) Value() interface{} { return c.data.value }

// IsZero reports whether c is the zero Cell (no payload at all), as
// opposed to a Cell with Len() == 0.
func (c Cell) IsZero() bool { return c.data == nil }

// SameAs reports whether c and other share the same underlying
// payload pointer — the "equality-of-identity" spec.md §9 calls for
// when a cache wants to know whether it can skip re-decoding because
// it already holds this exact cell.
func (c Cell) SameAs(other Cell) bool { return c.data == other.data }
