// Package indextable implements the per-(entity,timeline) index table:
// an ordered collection of buckets covering disjoint, contiguous time
// ranges (spec.md §3/§4, component C2).
package indextable

import (
	"sort"
	"sync"

	"github.com/loglake/loglake/pkg/bucket"
	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/timeline"
)

// Table owns the ordered list of buckets for one (entity, timeline)
// pair. It always holds at least one bucket, and the first bucket's
// LowerBound is always timeline.TimeIntMin — the "a bucket always
// covers MIN" invariant from spec.md §3.
type Table struct {
	mu        sync.RWMutex
	timeline  timeline.Timeline
	threshold int
	buckets   []*bucket.Bucket
}

// New creates an empty table for the given timeline. threshold is the
// row-count at which a bucket splits on insert (spec.md §4.3, C2).
func New(tl timeline.Timeline, threshold int) *Table {
	return &Table{
		timeline:  tl,
		threshold: threshold,
		buckets:   []*bucket.Bucket{bucket.New(timeline.TimeIntMin)},
	}
}

// Timeline reports which timeline this table is indexed on.
func (tb *Table) Timeline() timeline.Timeline { return tb.timeline }

// bucketIndexForLocked returns the index of the bucket whose
// LowerBound is the greatest one <= t. Callers must hold tb.mu (either
// lock).
func (tb *Table) bucketIndexForLocked(t timeline.TimeInt) int {
	// buckets are sorted ascending by LowerBound; find the first index
	// whose LowerBound is > t, then step back one.
	i := sort.Search(len(tb.buckets), func(i int) bool {
		return tb.buckets[i].LowerBound() > t
	})
	if i == 0 {
		// bucket[0].LowerBound() is always TimeIntMin, so this can only
		// happen if t < TimeIntMin, which is impossible.
		return 0
	}
	return i - 1
}

// Insert routes a row into the correct bucket by time, splitting that
// bucket if it now exceeds the configured row threshold.
func (tb *Table) Insert(t timeline.TimeInt, id rowid.RowID, cells map[component.Name]cell.Cell) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	idx := tb.bucketIndexForLocked(t)
	b := tb.buckets[idx]
	n := b.Insert(t, id, cells)
	if n <= tb.threshold {
		return
	}
	right := b.Split(tb.threshold)
	if right == nil {
		return
	}
	tb.buckets = append(tb.buckets, nil)
	copy(tb.buckets[idx+2:], tb.buckets[idx+1:])
	tb.buckets[idx+1] = right
}

// LatestAtResult mirrors bucket.LatestAtResult; exported here so
// callers don't need to import pkg/bucket directly.
type LatestAtResult = bucket.LatestAtResult

// LatestAt resolves, for each requested component, the value of the
// latest row at or before t. Components with no satisfying row are
// simply absent from the result map.
func (tb *Table) LatestAt(t timeline.TimeInt, components []component.Name) map[component.Name]LatestAtResult {
	tb.mu.RLock()
	buckets := append([]*bucket.Bucket(nil), tb.buckets...)
	startIdx := tb.bucketIndexForLocked(t)
	tb.mu.RUnlock()

	results := make(map[component.Name]LatestAtResult, len(components))
	remaining := make(map[component.Name]struct{}, len(components))
	for _, c := range components {
		remaining[c] = struct{}{}
	}

	for bi := startIdx; bi >= 0 && len(remaining) > 0; bi-- {
		b := buckets[bi]
		// Every bucket strictly older than startIdx lies entirely
		// before t by construction (its upper edge is the next
		// bucket's LowerBound, which is <= t), so search it in full.
		queryTime := t
		if bi < startIdx {
			queryTime = timeline.TimeIntMax
		}
		for name := range remaining {
			res, found, _ := b.LatestAtOne(queryTime, name)
			if found {
				results[name] = res
				delete(remaining, name)
			}
		}
	}
	return results
}

// Row mirrors bucket.Row.
type Row = bucket.Row

// Range returns every row with a time in [t0, t1], in ascending
// (time, RowId) order, restricted to the requested components (or all
// components present, if components is empty).
func (tb *Table) Range(t0, t1 timeline.TimeInt, components []component.Name) []Row {
	tb.mu.RLock()
	buckets := append([]*bucket.Bucket(nil), tb.buckets...)
	startIdx := tb.bucketIndexForLocked(t0)
	tb.mu.RUnlock()

	var keep map[component.Name]struct{}
	if len(components) > 0 {
		keep = make(map[component.Name]struct{}, len(components))
		for _, c := range components {
			keep[c] = struct{}{}
		}
	}

	var out []Row
	for i := startIdx; i < len(buckets) && buckets[i].LowerBound() <= t1; i++ {
		rows := buckets[i].Range(t0, t1)
		if keep == nil {
			out = append(out, rows...)
			continue
		}
		for _, r := range rows {
			filtered := make(map[component.Name]cell.Cell, len(keep))
			for name, c := range r.Cells {
				if _, ok := keep[name]; ok {
					filtered[name] = c
				}
			}
			r.Cells = filtered
			out = append(out, r)
		}
	}
	return out
}

// OldestTime returns the time of the oldest row actually stored in
// the table, across all its buckets.
func (tb *Table) OldestTime() (timeline.TimeInt, bool) {
	tb.mu.RLock()
	buckets := append([]*bucket.Bucket(nil), tb.buckets...)
	tb.mu.RUnlock()

	for _, b := range buckets {
		if b.Len() > 0 {
			return b.OldestRowTime()
		}
	}
	return 0, false
}

// ByteSize returns the total estimated byte size of all rows resident
// across every bucket in the table.
func (tb *Table) ByteSize() int64 {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	var total int64
	for _, b := range tb.buckets {
		total += b.ByteSize()
	}
	return total
}

// EvictUpTo walks buckets oldest-first, evicting rows until freed
// bytes reach maxFree or the table is drained. A row for which
// protect returns true is left resident (accounted as 0 freed bytes),
// per spec.md §4.8. Whole buckets that drain completely are dropped
// from the table; if that removes the lowest bucket, the new lowest
// bucket is relabeled to cover MIN, preserving the table invariant.
func (tb *Table) EvictUpTo(maxFree int64, protect func(rowid.RowID) bool) (evicted []Row, freed int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	i := 0
	for i < len(tb.buckets) && freed < maxFree {
		b := tb.buckets[i]
		rows, f, drained := b.EvictUpTo(maxFree-freed, protect)
		evicted = append(evicted, rows...)
		freed += f
		if drained {
			tb.buckets = append(tb.buckets[:i], tb.buckets[i+1:]...)
			continue
		}
		i++
	}

	if len(tb.buckets) == 0 {
		tb.buckets = []*bucket.Bucket{bucket.New(timeline.TimeIntMin)}
	} else if tb.buckets[0].LowerBound() != timeline.TimeIntMin {
		tb.buckets[0].SetLowerBound(timeline.TimeIntMin)
	}
	return evicted, freed
}

// RemoveByID removes a single row by RowId from whichever bucket
// holds it, relabeling the lowest surviving bucket to MIN if the
// lowest bucket was the one that lost its last row and other buckets
// remain. Used to purge a multi-timeline row from a table other than
// the one GC evicted it from directly.
func (tb *Table) RemoveByID(id rowid.RowID) (bucket.Row, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for i, b := range tb.buckets {
		row, ok := b.RemoveByID(id)
		if !ok {
			continue
		}
		if b.Len() == 0 && len(tb.buckets) > 1 {
			tb.buckets = append(tb.buckets[:i], tb.buckets[i+1:]...)
			if i == 0 && tb.buckets[0].LowerBound() != timeline.TimeIntMin {
				tb.buckets[0].SetLowerBound(timeline.TimeIntMin)
			}
		}
		return row, true
	}
	return bucket.Row{}, false
}

// BucketCount reports how many buckets currently back the table.
// Exported for tests that assert on split/evict behavior.
func (tb *Table) BucketCount() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()
	return len(tb.buckets)
}
