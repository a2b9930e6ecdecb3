// Package bucket implements Bucket, the contiguous, splittable slab
// of rows within a single (entity, timeline) indexed table (spec.md
// §3, §4.2).
//
// A Bucket stores rows as parallel columns (time, row id, and a
// sparse map per component) rather than row-major structs, the same
// shape the donor's pkg/resource/memory/paged_rows.go uses for its
// fixed-capacity row pages. Presence of a component within a bucket
// is tracked with a roaring bitmap keyed by in-bucket row index
// (bounded by the split threshold, so a uint32 key is always safe) —
// the idea is carried from the AKJUS-bsc-erigon retrieval slice,
// whose erigon-lib indexing layer uses roaring bitmaps for exactly
// this kind of sparse presence tracking.
package bucket

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/timeline"
)

// Row is a single decoded row, returned by Range, EvictUpTo and
// RemoveByID so the callers (pkg/indextable, and through it pkg/query
// and pkg/store) can build StoreEvents or query results without
// reaching back into bucket internals.
type Row struct {
	Time  timeline.TimeInt
	RowID rowid.RowID
	Cells map[component.Name]cell.Cell
}

// column is one component's sparse data within a bucket: present
// marks which in-bucket row indices carry this component, values
// holds the cell for each such index.
type column struct {
	present *roaring.Bitmap
	values  map[uint32]cell.Cell
}

func newColumn() *column {
	return &column{present: roaring.New(), values: make(map[uint32]cell.Cell)}
}

// Bucket holds a time-ordered (once sorted) run of rows for one
// (entity, timeline) pair.
type Bucket struct {
	mu sync.RWMutex

	lowerBound timeline.TimeInt
	times      []timeline.TimeInt
	rowIDs     []rowid.RowID
	components map[component.Name]*column
	sorted     bool

	maxRowID      rowid.RowID
	byteSize      int64
	allComponents map[component.Name]struct{}
}

// New creates an empty bucket with the given lower bound. The parent
// table's first bucket always has lowerBound == timeline.TimeIntMin
// (spec.md §3).
func New(lowerBound timeline.TimeInt) *Bucket {
	return &Bucket{
		lowerBound:    lowerBound,
		components:    make(map[component.Name]*column),
		sorted:        true,
		allComponents: make(map[component.Name]struct{}),
	}
}

// LowerBound returns the bucket's coverage lower bound.
func (b *Bucket) LowerBound() timeline.TimeInt {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lowerBound
}

// SetLowerBound relabels the bucket's lower bound; used by the parent
// table when the lowest bucket is evicted and the next-lowest must be
// relabeled to MIN (spec.md §3).
func (b *Bucket) SetLowerBound(t timeline.TimeInt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lowerBound = t
}

// Len returns the number of rows currently in the bucket.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.times)
}

// ByteSize returns the cached estimate of bytes retained by this
// bucket's cells.
func (b *Bucket) ByteSize() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.byteSize
}

// MaxRowID returns the greatest RowId ever inserted into this bucket.
func (b *Bucket) MaxRowID() rowid.RowID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxRowID
}

// AllComponents returns the set of component names ever stored in
// this bucket.
func (b *Bucket) AllComponents() []component.Name {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]component.Name, 0, len(b.allComponents))
	for name := range b.allComponents {
		out = append(out, name)
	}
	return out
}

// Insert appends a row's cells to the bucket's columns. The caller
// (pkg/indextable) has already decided this bucket is the right home
// for t. Returns the row count after insertion, so the caller can
// decide whether a split is due.
func (b *Bucket) Insert(t timeline.TimeInt, id rowid.RowID, cells map[component.Name]cell.Cell) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := uint32(len(b.times))
	b.times = append(b.times, t)
	b.rowIDs = append(b.rowIDs, id)
	b.sorted = false

	if b.maxRowID.IsNil() || b.maxRowID.Less(id) {
		b.maxRowID = id
	}

	for name, c := range cells {
		col, ok := b.components[name]
		if !ok {
			col = newColumn()
			b.components[name] = col
		}
		col.present.Add(idx)
		col.values[idx] = c
		b.allComponents[name] = struct{}{}
		b.byteSize += c.ByteSize()
	}

	return len(b.times)
}

// EnsureSorted sorts the bucket in place if it is not already sorted,
// by (time, row id) ascending (spec.md §4.2).
func (b *Bucket) EnsureSorted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureSortedLocked()
}

func (b *Bucket) ensureSortedLocked() {
	if b.sorted {
		return
	}
	n := len(b.times)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(i, j int) bool {
		a, c := perm[i], perm[j]
		if b.times[a] != b.times[c] {
			return b.times[a] < b.times[c]
		}
		return b.rowIDs[a].Less(b.rowIDs[c])
	})
	b.applyPermutationLocked(perm)
	b.sorted = true
}

// applyPermutationLocked rewrites every column so that new index i
// holds what used to be at perm[i]. Caller holds b.mu.
func (b *Bucket) applyPermutationLocked(perm []int) {
	newTimes := make([]timeline.TimeInt, len(perm))
	newRowIDs := make([]rowid.RowID, len(perm))
	oldToNew := make(map[int]uint32, len(perm))
	for newIdx, oldIdx := range perm {
		newTimes[newIdx] = b.times[oldIdx]
		newRowIDs[newIdx] = b.rowIDs[oldIdx]
		oldToNew[oldIdx] = uint32(newIdx)
	}
	b.times = newTimes
	b.rowIDs = newRowIDs

	for _, col := range b.components {
		newPresent := roaring.New()
		newValues := make(map[uint32]cell.Cell, len(col.values))
		it := col.present.Iterator()
		for it.HasNext() {
			oldIdx := it.Next()
			newIdx := oldToNew[int(oldIdx)]
			newPresent.Add(newIdx)
			newValues[newIdx] = col.values[oldIdx]
		}
		col.present = newPresent
		col.values = newValues
	}
}

// LatestAtResult is one component's resolved value for a latest-at
// query.
type LatestAtResult struct {
	Time  timeline.TimeInt
	RowID rowid.RowID
	Cell  cell.Cell
}

// LatestAtOne searches backward from the largest index whose time is
// <= t for the nearest row carrying name. exhausted reports whether
// the search reached index 0 without success, meaning the caller
// (pkg/indextable) should continue into the previous bucket; found
// false with exhausted false means t is before this bucket's first
// row (caller should also continue into the previous bucket — there
// is nothing to scan here at all).
func (b *Bucket) LatestAtOne(t timeline.TimeInt, name component.Name) (result LatestAtResult, found bool, exhausted bool) {
	b.mu.Lock()
	b.ensureSortedLocked()
	defer b.mu.Unlock()

	col, ok := b.components[name]
	if !ok || len(b.times) == 0 {
		return LatestAtResult{}, false, true
	}

	// Largest index i with times[i] <= t.
	i := sort.Search(len(b.times), func(i int) bool { return b.times[i] > t }) - 1
	if i < 0 {
		return LatestAtResult{}, false, false
	}

	for ; i >= 0; i-- {
		if col.present.Contains(uint32(i)) {
			return LatestAtResult{Time: b.times[i], RowID: b.rowIDs[i], Cell: col.values[uint32(i)]}, true, false
		}
	}
	return LatestAtResult{}, false, true
}

// Range returns, in (time, row id) ascending order, every row whose
// time lies in [t0, t1].
func (b *Bucket) Range(t0, t1 timeline.TimeInt) []Row {
	b.mu.Lock()
	b.ensureSortedLocked()
	defer b.mu.Unlock()

	start := sort.Search(len(b.times), func(i int) bool { return b.times[i] >= t0 })
	end := sort.Search(len(b.times), func(i int) bool { return b.times[i] > t1 })

	out := make([]Row, 0, end-start)
	for i := start; i < end; i++ {
		cells := make(map[component.Name]cell.Cell)
		for name, col := range b.components {
			if col.present.Contains(uint32(i)) {
				cells[name] = col.values[uint32(i)]
			}
		}
		out = append(out, Row{Time: b.times[i], RowID: b.rowIDs[i], Cells: cells})
	}
	return out
}

// OldestRowTime returns the time of the earliest row actually stored
// in the bucket (sorting on demand), as opposed to LowerBound, which
// is a coverage sentinel that may be far below any row the bucket
// actually holds (the first bucket's lower bound is always MIN).
// Used through indextable.Table.OldestTime by the store's Gc to pick
// the table holding the oldest row on the GC timeline.
func (b *Bucket) OldestRowTime() (timeline.TimeInt, bool) {
	b.mu.Lock()
	b.ensureSortedLocked()
	defer b.mu.Unlock()
	if len(b.times) == 0 {
		return 0, false
	}
	return b.times[0], true
}

// FirstTime returns the bucket's lower bound, which is by
// construction a valid lower bound on every row's time in the bucket,
// or false if the bucket is empty. Unlike OldestRowTime it never
// forces an on-demand sort.
func (b *Bucket) FirstTime() (timeline.TimeInt, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.times) == 0 {
		return 0, false
	}
	// Cheap bound without forcing a sort: the lower bound is already
	// an exact lower bound on every row's time by construction.
	return b.lowerBound, true
}

// Split splits the bucket at its median time if it exceeds threshold,
// returning the new right-hand bucket (or nil if no split occurred).
// Equal-time runs are kept together on the lower side, preserving
// (time, row id) ordering across the split (spec.md §4.2).
func (b *Bucket) Split(threshold int) *Bucket {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureSortedLocked()

	n := len(b.times)
	if n <= threshold {
		return nil
	}

	splitIdx := n / 2
	for splitIdx < n && b.times[splitIdx] == b.times[splitIdx-1] {
		splitIdx++
	}
	if splitIdx >= n {
		// Every row shares one time value; cannot split without
		// breaking the tie-break invariant.
		return nil
	}

	right := New(b.times[splitIdx])
	right.times = append([]timeline.TimeInt{}, b.times[splitIdx:]...)
	right.rowIDs = append([]rowid.RowID{}, b.rowIDs[splitIdx:]...)
	right.sorted = true

	for name, col := range b.components {
		rightCol := newColumn()
		it := col.present.Iterator()
		for it.HasNext() {
			oldIdx := it.Next()
			if int(oldIdx) < splitIdx {
				continue
			}
			newIdx := oldIdx - uint32(splitIdx)
			rightCol.present.Add(newIdx)
			rightCol.values[newIdx] = col.values[oldIdx]
			right.byteSize += col.values[oldIdx].ByteSize()
		}
		if !rightCol.present.IsEmpty() {
			right.components[name] = rightCol
			right.allComponents[name] = struct{}{}
		}
	}
	right.recomputeMaxRowID()

	// Truncate the receiver to the lower half.
	keep := make([]int, splitIdx)
	for i := range keep {
		keep[i] = i
	}
	b.rebuildLocked(keep)

	return right
}

func (b *Bucket) recomputeByteSizeLocked() {
	var total int64
	for _, col := range b.components {
		for _, c := range col.values {
			total += c.ByteSize()
		}
	}
	b.byteSize = total
}

func (b *Bucket) recomputeMaxRowID() {
	var max rowid.RowID
	for _, id := range b.rowIDs {
		if max.IsNil() || max.Less(id) {
			max = id
		}
	}
	b.maxRowID = max
}

// rowBytesLocked sums the byte size of every cell present at index i.
// Caller holds b.mu.
func (b *Bucket) rowBytesLocked(i int) int64 {
	var total int64
	for _, col := range b.components {
		if c, ok := col.values[uint32(i)]; ok {
			total += c.ByteSize()
		}
	}
	return total
}

// rebuildLocked keeps only the rows at the given old indices (which
// must be strictly ascending), in order, remapping every component
// column accordingly. Caller holds b.mu.
func (b *Bucket) rebuildLocked(keepOld []int) {
	oldToNew := make(map[int]uint32, len(keepOld))
	newTimes := make([]timeline.TimeInt, len(keepOld))
	newRowIDs := make([]rowid.RowID, len(keepOld))
	for newIdx, oldIdx := range keepOld {
		newTimes[newIdx] = b.times[oldIdx]
		newRowIDs[newIdx] = b.rowIDs[oldIdx]
		oldToNew[oldIdx] = uint32(newIdx)
	}
	b.times = newTimes
	b.rowIDs = newRowIDs

	for name, col := range b.components {
		newCol := newColumn()
		it := col.present.Iterator()
		for it.HasNext() {
			oldIdx := it.Next()
			newIdx, ok := oldToNew[int(oldIdx)]
			if !ok {
				continue
			}
			newCol.present.Add(newIdx)
			newCol.values[newIdx] = col.values[oldIdx]
		}
		if newCol.present.IsEmpty() {
			delete(b.components, name)
		} else {
			b.components[name] = newCol
		}
	}
	b.recomputeByteSizeLocked()
	b.recomputeMaxRowID()
}

// RemoveByID removes a single row by RowId, if present, regardless of
// its position in the bucket. Used when a row spans several timelines
// and must be atomically purged from every (entity, timeline) table it
// was inserted into once any one of them evicts it (spec.md §3
// invariant 3: deletion removes all cells of a row atomically).
func (b *Bucket) RemoveByID(id rowid.RowID) (Row, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := -1
	for i, rid := range b.rowIDs {
		if rid == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Row{}, false
	}

	cells := make(map[component.Name]cell.Cell)
	for name, col := range b.components {
		if c, ok := col.values[uint32(idx)]; ok {
			cells[name] = c
		}
	}
	row := Row{Time: b.times[idx], RowID: id, Cells: cells}

	keep := make([]int, 0, len(b.times)-1)
	for i := range b.times {
		if i != idx {
			keep = append(keep, i)
		}
	}
	b.rebuildLocked(keep)
	return row, true
}

// EvictUpTo walks the bucket oldest-first, evicting rows until freed
// bytes reach maxFree or the bucket is exhausted. A row whose RowId
// satisfies protect is skipped — left resident, its bytes not counted
// toward freed — but the walk continues past it toward older-to-newer
// rows beyond it, matching spec.md §4.8 step 4 (a protected row is
// "accounted as freed 0 bytes", not a stopping point). Returns the
// evicted rows (for the caller to build deletion events), the actual
// bytes freed, and whether every row in the bucket was evicted.
func (b *Bucket) EvictUpTo(maxFree int64, protect func(rowid.RowID) bool) (evicted []Row, freed int64, wholeBucketDrained bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureSortedLocked()

	n := len(b.times)
	removeIdx := make(map[int]bool)
	for i := 0; i < n && freed < maxFree; i++ {
		id := b.rowIDs[i]
		if protect != nil && protect(id) {
			continue
		}
		cells := make(map[component.Name]cell.Cell)
		for name, col := range b.components {
			if c, ok := col.values[uint32(i)]; ok {
				cells[name] = c
			}
		}
		evicted = append(evicted, Row{Time: b.times[i], RowID: id, Cells: cells})
		freed += b.rowBytesLocked(i)
		removeIdx[i] = true
	}

	if len(removeIdx) == 0 {
		return nil, 0, false
	}

	keep := make([]int, 0, n-len(removeIdx))
	for i := 0; i < n; i++ {
		if !removeIdx[i] {
			keep = append(keep, i)
		}
	}
	b.rebuildLocked(keep)

	return evicted, freed, len(keep) == 0
}
