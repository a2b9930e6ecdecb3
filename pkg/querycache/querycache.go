// Package querycache implements the per-(entity, timeline, component)
// query result cache (spec.md §4.7, component C7): memoized latest-at
// and range results, invalidated incrementally by store events.
package querycache

import (
	"sync"

	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/loglake/loglake/pkg/indextable"
	"github.com/loglake/loglake/pkg/query"
	"github.com/loglake/loglake/pkg/statictable"
	"github.com/loglake/loglake/pkg/storeevent"
	"github.com/loglake/loglake/pkg/timeline"
)

// Key identifies one cache slot: an entity (by its stable hash), a
// timeline name, and a component name.
type Key struct {
	EntityHash uint64
	Timeline   string
	Component  component.Name
}

// NewKey builds a Key from an entity path, timeline name, and
// component name.
func NewKey(path entitypath.EntityPath, tl string, c component.Name) Key {
	return Key{EntityHash: path.Hash(), Timeline: tl, Component: c}
}

type entComp struct {
	EntityHash uint64
	Component  component.Name
}

type latestCached struct {
	result query.Result
	found  bool
}

// Cache holds, per Key, a latest-at cache and a range cache, each
// independently populated and invalidated.
type Cache struct {
	mu                sync.Mutex
	entries           map[Key]*entry
	byEntityComponent map[entComp][]Key
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries:           make(map[Key]*entry),
		byEntityComponent: make(map[entComp][]Key),
	}
}

type entry struct {
	mu sync.Mutex

	isStatic     bool
	staticResult query.Result

	latest map[timeline.TimeInt]Promise[latestCached]

	hasRange bool
	frontMin timeline.TimeInt
	backMax  timeline.TimeInt
	rows     []query.RangeRow

	pendingInvalidation *timeline.TimeInt
}

func newEntry() *entry {
	return &entry{latest: make(map[timeline.TimeInt]Promise[latestCached])}
}

func (c *Cache) getOrCreate(k Key) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if ok {
		return e
	}
	e = newEntry()
	c.entries[k] = e
	ec := entComp{EntityHash: k.EntityHash, Component: k.Component}
	c.byEntityComponent[ec] = append(c.byEntityComponent[ec], k)
	return e
}

// LatestAt returns the cached (or freshly computed and cached) result
// for key k at time t. The second return value reports whether any
// result exists (absent components yield false, not a zero Result).
func (c *Cache) LatestAt(k Key, static *statictable.Table, indexed *indextable.Table, t timeline.TimeInt) (query.Result, bool) {
	e := c.getOrCreate(k)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyPendingInvalidationLocked()

	if e.isStatic {
		return e.staticResult, true
	}
	if p, ok := e.latest[t]; ok {
		v, _ := p.Value()
		return v.result, v.found
	}

	results := query.LatestAt(static, indexed, t, []component.Name{k.Component})
	res, found := results[k.Component]

	if found && res.DataTime.IsStatic() {
		e.isStatic = true
		e.staticResult = res
		e.latest = make(map[timeline.TimeInt]Promise[latestCached])
		e.hasRange = false
		e.rows = nil
		return res, true
	}

	e.latest[t] = ResolvedPromise(latestCached{result: res, found: found})
	return res, found
}

// Range returns the rows in [t0, t1] for key k, computing and caching
// only the gaps between t0/t1 and what is already cached.
func (c *Cache) Range(k Key, static *statictable.Table, indexed *indextable.Table, t0, t1 timeline.TimeInt) []query.RangeRow {
	e := c.getOrCreate(k)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyPendingInvalidationLocked()

	if e.isStatic {
		return []query.RangeRow{cloneRangeRow(e.staticResult, k.Component)}
	}

	comps := []component.Name{k.Component}

	if !e.hasRange {
		rows := query.Range(static, indexed, t0, t1, comps)
		if len(rows) > 0 && rows[0].DataTime.IsStatic() {
			e.isStatic = true
			e.staticResult = query.Result{DataTime: rows[0].DataTime, RowID: rows[0].RowID, Cell: rows[0].Cells[k.Component]}
			return rows
		}
		e.rows = rows
		e.hasRange = true
		e.frontMin, e.backMax = t0, t1
		return rows
	}

	// Bridging detection: a query extending beyond the cached extent
	// with an actual gap between them must force a coarse invalidation
	// rather than silently assume the gap is empty (spec.md §4.7).
	if t0 > e.backMax+1 {
		gap := query.Range(static, indexed, e.backMax+1, t0-1, comps)
		if len(gap) > 0 {
			e.rows = nil
			e.hasRange = false
			rows := query.Range(static, indexed, t0, t1, comps)
			e.rows = rows
			e.hasRange = true
			e.frontMin, e.backMax = t0, t1
			return rows
		}
	}
	if t1 < e.frontMin-1 {
		gap := query.Range(static, indexed, t1+1, e.frontMin-1, comps)
		if len(gap) > 0 {
			e.rows = nil
			e.hasRange = false
			rows := query.Range(static, indexed, t0, t1, comps)
			e.rows = rows
			e.hasRange = true
			e.frontMin, e.backMax = t0, t1
			return rows
		}
	}

	if t0 < e.frontMin {
		hi := t1
		if hi > e.frontMin-1 {
			hi = e.frontMin - 1
		}
		newRows := query.Range(static, indexed, t0, hi, comps)
		e.rows = append(newRows, e.rows...)
		e.frontMin = t0
	}
	if t1 > e.backMax {
		lo := t0
		if lo < e.backMax+1 {
			lo = e.backMax + 1
		}
		newRows := query.Range(static, indexed, lo, t1, comps)
		e.rows = append(e.rows, newRows...)
		e.backMax = t1
	}

	var out []query.RangeRow
	for _, r := range e.rows {
		if !r.DataTime.IsStatic() && r.DataTime.Value() >= t0 && r.DataTime.Value() <= t1 {
			out = append(out, r)
		}
	}
	return out
}

func cloneRangeRow(r query.Result, name component.Name) query.RangeRow {
	return query.RangeRow{DataTime: r.DataTime, RowID: r.RowID, Cells: map[component.Name]cell.Cell{name: r.Cell}}
}

func (e *entry) applyPendingInvalidationLocked() {
	if e.pendingInvalidation == nil {
		return
	}
	w := *e.pendingInvalidation
	e.pendingInvalidation = nil

	e.isStatic = false
	e.staticResult = query.Result{}

	for t := range e.latest {
		if t >= w {
			delete(e.latest, t)
		}
	}

	if !e.hasRange {
		return
	}
	kept := e.rows[:0:0]
	for _, r := range e.rows {
		if !r.DataTime.IsStatic() && r.DataTime.Value() >= w {
			continue
		}
		kept = append(kept, r)
	}
	e.rows = kept
	if len(e.rows) == 0 {
		e.hasRange = false
		return
	}
	if e.backMax >= w {
		e.backMax = w - 1
	}
	if e.frontMin >= w {
		e.hasRange = false
		e.rows = nil
	}
}

// OnEvent is the cache's storeevent.Subscriber: it records a deferred
// invalidation watermark for every (entity, timeline, component) slot
// touched by ev. Actual compaction happens lazily on the next query
// against that slot (spec.md §4.7/§9).
func (c *Cache) OnEvent(ev storeevent.Event) {
	entityHash := ev.Diff.EntityPath.Hash()

	if ev.Diff.TimePoint.IsStatic() {
		for name := range ev.Diff.Cells {
			ec := entComp{EntityHash: entityHash, Component: name}
			c.mu.Lock()
			keys := append([]Key(nil), c.byEntityComponent[ec]...)
			c.mu.Unlock()
			for _, k := range keys {
				c.invalidate(k, timeline.TimeIntMin)
			}
		}
		return
	}

	for _, tl := range ev.Diff.TimePoint.Timelines() {
		t, ok := ev.Diff.TimePoint.Get(tl.Name)
		if !ok {
			continue
		}
		for name := range ev.Diff.Cells {
			k := Key{EntityHash: entityHash, Timeline: tl.Name, Component: name}
			c.invalidate(k, t)
		}
	}
}

func (c *Cache) invalidate(k Key, at timeline.TimeInt) {
	c.mu.Lock()
	e, ok := c.entries[k]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingInvalidation == nil || at < *e.pendingInvalidation {
		w := at
		e.pendingInvalidation = &w
	}
}
