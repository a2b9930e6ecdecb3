// Package query implements the latest-at and range query engines
// (spec.md §4.6, component C6) as pure functions over table
// accessors, so pkg/querycache can invoke the exact same code path as
// an uncached bypass query (spec.md §8: "cache coherence").
package query

import (
	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/indextable"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/statictable"
	"github.com/loglake/loglake/pkg/timeline"
)

// Result is the outcome of resolving one component: its data time
// (Static or Temporal), the authoring RowId, and its cell.
type Result struct {
	DataTime timeline.DataTime
	RowID    rowid.RowID
	Cell     cell.Cell
}

// RangeRow is one entry of a range query's ordered output: a data
// time, the RowId that authored it, and every requested component
// present at that (data_time, row_id).
type RangeRow struct {
	DataTime timeline.DataTime
	RowID    rowid.RowID
	Cells    map[component.Name]cell.Cell
}

// LatestAt resolves, for each requested component, the value visible
// at entity E on timeline L as of time t. static may be nil (entity
// has no static table yet); indexed may be nil (entity has no indexed
// table for this timeline yet). Static data unconditionally shadows
// temporal data per component (spec.md §3 invariant 6).
func LatestAt(static *statictable.Table, indexed *indextable.Table, t timeline.TimeInt, components []component.Name) map[component.Name]Result {
	out := make(map[component.Name]Result, len(components))

	var temporalWanted []component.Name
	for _, c := range components {
		if static != nil {
			if e, ok := static.Get(c); ok {
				out[c] = Result{DataTime: timeline.Static, RowID: e.RowID, Cell: e.Cell}
				continue
			}
		}
		temporalWanted = append(temporalWanted, c)
	}

	if indexed == nil || len(temporalWanted) == 0 {
		return out
	}
	for name, res := range indexed.LatestAt(t, temporalWanted) {
		out[name] = Result{DataTime: timeline.Temporal(res.Time), RowID: res.RowID, Cell: res.Cell}
	}
	return out
}

// Range resolves every value of the requested components at entity E
// on timeline L with a data time in [t0, t1]. Components shadowed by
// a static entry are yielded once, up front, at DataTime = Static,
// ahead of any temporal rows — a static value is not constrained by
// the requested range (spec.md §4.6).
func Range(static *statictable.Table, indexed *indextable.Table, t0, t1 timeline.TimeInt, components []component.Name) []RangeRow {
	var out []RangeRow

	var temporalWanted []component.Name
	for _, c := range components {
		if static != nil {
			if e, ok := static.Get(c); ok {
				out = append(out, RangeRow{
					DataTime: timeline.Static,
					RowID:    e.RowID,
					Cells:    map[component.Name]cell.Cell{c: e.Cell},
				})
				continue
			}
		}
		temporalWanted = append(temporalWanted, c)
	}

	if indexed == nil || len(temporalWanted) == 0 {
		return out
	}
	for _, r := range indexed.Range(t0, t1, temporalWanted) {
		out = append(out, RangeRow{
			DataTime: timeline.Temporal(r.Time),
			RowID:    r.RowID,
			Cells:    r.Cells,
		})
	}
	return out
}
