// Package row implements Row, the atomic insertion unit of the store
// (spec.md §3).
package row

import (
	"fmt"

	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/timeline"
)

// Row is the atomic insertion unit: a RowId, an EntityPath, a
// TimePoint (empty means static), and a map of cells keyed by unique
// ComponentName.
type Row struct {
	RowID      rowid.RowID
	EntityPath entitypath.EntityPath
	TimePoint  timeline.TimePoint
	Cells      map[component.Name]cell.Cell
}

// New validates and constructs a Row. It is the only way to obtain a
// Row with a guaranteed-unique set of cell keys; Cells is a Go map
// keyed by component.Name already, so duplicate keys within a single
// call are structurally impossible — New exists mainly to require a
// non-nil RowId and to give callers one obvious construction point,
// matching the donor's one-validating-constructor convention (e.g.
// pkg/types/result_set.go).
func New(id rowid.RowID, path entitypath.EntityPath, tp timeline.TimePoint, cells map[component.Name]cell.Cell) (Row, error) {
	if id.IsNil() {
		return Row{}, fmt.Errorf("row: RowId must not be nil")
	}
	cp := make(map[component.Name]cell.Cell, len(cells))
	for k, v := range cells {
		cp[k] = v
	}
	return Row{RowID: id, EntityPath: path, TimePoint: tp, Cells: cp}, nil
}

// IsStatic reports whether the row carries no TimePoint (spec.md §3).
func (r Row) IsStatic() bool { return r.TimePoint.IsStatic() }

// IsEmpty reports whether the row carries no cells at all — inserting
// such a row is a documented no-op (spec.md §8 boundary behavior).
func (r Row) IsEmpty() bool { return len(r.Cells) == 0 }
