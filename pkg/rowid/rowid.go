// Package rowid implements RowId: a 128-bit, time-based, globally
// unique row identifier. RowIds are strictly, totally ordered, and
// that order is time-correlated: it is used both as a tie-breaker for
// rows sharing a (entity, timeline, time) and as the "which write is
// newer" comparator for static data (spec.md §3, §9).
package rowid

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// RowID is a RFC 9562 UUID version 7: a 48-bit millisecond timestamp
// followed by a monotonic sub-millisecond counter and a random tail.
// Its raw byte order already matches creation order, so comparing two
// RowIDs lexicographically is exactly the total order the store
// needs; no separate sequence counter has to be threaded through
// insertion.
type RowID [16]byte

// Nil is the zero RowID; never produced by New, reserved to mean
// "no RowID" (row.New rejects it, and a bucket's MaxRowID is Nil
// until its first insert).
var Nil RowID

// New generates a fresh, time-ordered RowID. Safe for concurrent use:
// uuid.NewV7's monotonic counter is itself synchronized.
func New() RowID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the process's entropy source is
		// broken; there is no sane degraded mode for a unique-id
		// generator, so this is the one place the package panics.
		panic(fmt.Errorf("rowid: failed to generate uuidv7: %w", err))
	}
	return RowID(id)
}

// Compare returns -1, 0, or 1 as r is less than, equal to, or greater
// than other, using the same byte order NewV7 produces (and therefore
// creation order).
func (r RowID) Compare(other RowID) int {
	return bytes.Compare(r[:], other[:])
}

// Less reports whether r was created strictly before other.
func (r RowID) Less(other RowID) bool { return r.Compare(other) < 0 }

// IsNil reports whether r is the zero value.
func (r RowID) IsNil() bool { return r == Nil }

// String renders the RowID as a canonical UUID string, for logs and
// test failure messages.
func (r RowID) String() string {
	return uuid.UUID(r).String()
}
