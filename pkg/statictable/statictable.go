// Package statictable implements the static-data table (component
// C3): one (RowId, Cell) pair per component per entity, overwritten by
// last-write-wins on RowId order (spec.md §3).
package statictable

import (
	"sync"

	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/rowid"
)

// Entry is a single static value: the cell and the RowId that wrote
// it, kept so later inserts can be ordered against it.
type Entry struct {
	RowID rowid.RowID
	Cell  cell.Cell
}

// Table holds the static cells for a single entity, keyed by
// component name.
type Table struct {
	mu      sync.RWMutex
	entries map[component.Name]Entry
}

// New creates an empty static table.
func New() *Table {
	return &Table{entries: make(map[component.Name]Entry)}
}

// Insert writes cell c for component name, authored by id. If an
// entry already exists for name, the write is accepted only if id is
// strictly greater than the incumbent RowId (spec.md §4.5: static data
// is last-write-wins by RowId, not insertion order). Returns true if
// the write was accepted.
func (t *Table) Insert(name component.Name, id rowid.RowID, c cell.Cell) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.entries[name]
	if ok && !existing.RowID.Less(id) {
		return false
	}
	t.entries[name] = Entry{RowID: id, Cell: c}
	return true
}

// Get returns the current static entry for a component, if any.
func (t *Table) Get(name component.Name) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[name]
	return e, ok
}

// Components returns the set of components with a static value,
// in no particular order.
func (t *Table) Components() []component.Name {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]component.Name, 0, len(t.entries))
	for name := range t.entries {
		out = append(out, name)
	}
	return out
}

// Len reports how many components carry a static value.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
