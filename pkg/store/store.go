// Package store implements the store facade (spec.md §4.4, component
// C4): the single entry point that coordinates the indexed and static
// tables, assigns generations and event ids, and surfaces insert, gc,
// query, and subscription operations.
package store

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/loglake/loglake/internal/corelog"
	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/loglake/loglake/pkg/gc"
	"github.com/loglake/loglake/pkg/indextable"
	"github.com/loglake/loglake/pkg/query"
	"github.com/loglake/loglake/pkg/querycache"
	"github.com/loglake/loglake/pkg/row"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/statictable"
	"github.com/loglake/loglake/pkg/storeevent"
	"github.com/loglake/loglake/pkg/timeline"
)

// Config recognizes the two options spec.md §6 names, plus a logger
// slot following the donor's convention of threading a corelog.Logger
// through every long-lived component instead of reaching for a global.
type Config struct {
	// BucketRowThreshold is the row count at which an indexed bucket
	// splits (spec.md §6, default 512).
	BucketRowThreshold int
	// StoreInsertIDs, if set, attaches the store's insert_id to every
	// inserted row as a synthetic component (spec.md §6).
	StoreInsertIDs bool
	Logger         corelog.Logger
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{BucketRowThreshold: 512, StoreInsertIDs: false, Logger: corelog.Default}
}

// InsertIDComponent is the synthetic component name used to carry the
// store's insert_id alongside a row's own cells when
// Config.StoreInsertIDs is set.
const InsertIDComponent component.Name = "loglake.controls.InsertId"

type insertIDDatatype struct{}

func (insertIDDatatype) DatatypeName() string { return "uint64" }

// DuplicateRowIDError reports an insert whose RowId was already used
// by a prior addition (spec.md §7, DuplicateRowId).
type DuplicateRowIDError struct {
	RowID rowid.RowID
}

func (e *DuplicateRowIDError) Error() string {
	return fmt.Sprintf("store: row id %s already used by a prior insertion", e.RowID)
}

type rowRecord struct {
	EntityPath entitypath.EntityPath
	TimePoint  timeline.TimePoint
	Cells      map[component.Name]cell.Cell
	tables     []*indextable.Table
}

// Store is the facade tying together the indexed tables (C2), the
// static tables (C3), the event stream (C5), and the query cache (C7)
// for one logical recording.
type Store struct {
	id     storeevent.StoreID
	config Config

	mu       sync.RWMutex
	registry *component.Registry
	indexed  map[uint64]map[string]*indextable.Table
	static   map[uint64]*statictable.Table
	known    map[rowid.RowID]struct{}
	records  map[rowid.RowID]*rowRecord

	insertID uint64
	gcID     uint64
	eventID  uint64

	events *storeevent.Registry
	cache  *querycache.Cache
}

// New creates an empty store with a freshly generated StoreId.
func New(config Config) *Store {
	if config.BucketRowThreshold <= 0 {
		config.BucketRowThreshold = 512
	}
	if config.Logger == nil {
		config.Logger = corelog.Nop
	}
	s := &Store{
		id:       storeevent.StoreID(uuid.NewString()),
		config:   config,
		registry: component.NewRegistry(),
		indexed:  make(map[uint64]map[string]*indextable.Table),
		static:   make(map[uint64]*statictable.Table),
		known:    make(map[rowid.RowID]struct{}),
		records:  make(map[rowid.RowID]*rowRecord),
		events:   storeevent.NewRegistry(),
		cache:    querycache.New(),
	}
	s.events.Subscribe(s.cache.OnEvent)
	return s
}

// ID returns the store's identifier.
func (s *Store) ID() storeevent.StoreID { return s.id }

// Generation returns the store's current (insert_id, gc_id) pair.
func (s *Store) Generation() storeevent.Generation {
	return storeevent.Generation{
		InsertID: atomic.LoadUint64(&s.insertID),
		GcID:     atomic.LoadUint64(&s.gcID),
	}
}

func (s *Store) getOrCreateIndexedTableLocked(path entitypath.EntityPath, tl timeline.Timeline) *indextable.Table {
	eh := path.Hash()
	byTL, ok := s.indexed[eh]
	if !ok {
		byTL = make(map[string]*indextable.Table)
		s.indexed[eh] = byTL
	}
	tbl, ok := byTL[tl.Name]
	if !ok {
		tbl = indextable.New(tl, s.config.BucketRowThreshold)
		byTL[tl.Name] = tbl
	}
	return tbl
}

func (s *Store) getOrCreateStaticTableLocked(path entitypath.EntityPath) *statictable.Table {
	eh := path.Hash()
	t, ok := s.static[eh]
	if !ok {
		t = statictable.New()
		s.static[eh] = t
	}
	return t
}

// InsertRow implements spec.md §4.4's insert_row. Returns nil, nil for
// a no-op insert (empty cells, or a stale static write that replaced
// nothing) — no event is produced in either case.
func (s *Store) InsertRow(r row.Row) (*storeevent.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.known[r.RowID]; dup {
		return nil, &DuplicateRowIDError{RowID: r.RowID}
	}

	for name, c := range r.Cells {
		if err := s.registry.RegisterOrCheck(name, c.Datatype()); err != nil {
			return nil, err
		}
	}
	s.known[r.RowID] = struct{}{}

	if r.IsEmpty() {
		return nil, nil
	}

	cells := r.Cells
	if s.config.StoreInsertIDs {
		cp := make(map[component.Name]cell.Cell, len(r.Cells)+1)
		for k, v := range r.Cells {
			cp[k] = v
		}
		nextID := s.insertID + 1
		cp[InsertIDComponent] = cell.New(InsertIDComponent, insertIDDatatype{}, nextID, 1, 8)
		cells = cp
	}

	if r.TimePoint.IsStatic() {
		st := s.getOrCreateStaticTableLocked(r.EntityPath)
		accepted := make(map[component.Name]cell.Cell)
		for name, c := range cells {
			if st.Insert(name, r.RowID, c) {
				accepted[name] = c
			}
		}
		if len(accepted) == 0 {
			return nil, nil
		}
		ev := s.emitLocked(storeevent.Addition, r.RowID, r.TimePoint, r.EntityPath, accepted)
		return &ev, nil
	}

	tables := make([]*indextable.Table, 0, len(r.TimePoint.Timelines()))
	for _, tl := range r.TimePoint.Timelines() {
		t, _ := r.TimePoint.Get(tl.Name)
		tbl := s.getOrCreateIndexedTableLocked(r.EntityPath, tl)
		tbl.Insert(t, r.RowID, cells)
		tables = append(tables, tbl)
	}
	s.records[r.RowID] = &rowRecord{EntityPath: r.EntityPath, TimePoint: r.TimePoint, Cells: cells, tables: tables}

	ev := s.emitLocked(storeevent.Addition, r.RowID, r.TimePoint, r.EntityPath, cells)
	return &ev, nil
}

// emitLocked assigns the next event id (and bumps insert_id for an
// Addition), builds the event, and dispatches it synchronously before
// returning — spec.md §4.5's delivery-before-return contract. Caller
// holds s.mu.
func (s *Store) emitLocked(kind storeevent.Kind, id rowid.RowID, tp timeline.TimePoint, path entitypath.EntityPath, cells map[component.Name]cell.Cell) storeevent.Event {
	if kind == storeevent.Addition {
		s.insertID++
	}
	s.eventID++
	ev := storeevent.Event{
		StoreID:    s.id,
		Generation: storeevent.Generation{InsertID: s.insertID, GcID: s.gcID},
		EventID:    s.eventID,
		Diff: storeevent.Diff{
			Kind:       kind,
			RowID:      id,
			TimePoint:  tp,
			EntityPath: path,
			Cells:      cells,
		},
	}
	s.events.Dispatch(ev)
	return ev
}

// Gc implements spec.md §4.8's target-driven eviction.
func (s *Store) Gc(target gc.Target) ([]storeevent.Event, gc.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.totalTemporalBytesLocked()
	toFree := target.BytesToFree(total)
	if toFree <= 0 {
		return nil, gc.Stats{}
	}

	protect := target.Protect
	if protect == nil {
		protect = func(rowid.RowID) bool { return false }
	}

	type ref struct {
		table *indextable.Table
	}
	var matching, other []ref
	for _, byTL := range s.indexed {
		for tlName, tbl := range byTL {
			if tlName == target.Timeline {
				matching = append(matching, ref{tbl})
			} else {
				other = append(other, ref{tbl})
			}
		}
	}

	var events []storeevent.Event
	var freed int64
	var evictedCount int

	evictFrom := func(r ref) {
		for freed < toFree {
			rows, f := r.table.EvictUpTo(toFree-freed, protect)
			if len(rows) == 0 {
				return
			}
			for _, row := range rows {
				rec, ok := s.records[row.RowID]
				if !ok {
					continue
				}
				delete(s.records, row.RowID)
				for _, other := range rec.tables {
					if other == r.table {
						continue
					}
					other.RemoveByID(row.RowID)
				}
				events = append(events, s.emitLocked(storeevent.Deletion, row.RowID, rec.TimePoint, rec.EntityPath, rec.Cells))
				s.gcID++
				evictedCount++
			}
			freed += f
			if f == 0 {
				return
			}
		}
	}

	for freed < toFree {
		bestIdx := -1
		var bestTime timeline.TimeInt
		for i, r := range matching {
			t, ok := r.table.OldestTime()
			if !ok {
				continue
			}
			if bestIdx == -1 || t < bestTime {
				bestIdx, bestTime = i, t
			}
		}
		if bestIdx == -1 {
			break
		}
		evictFrom(matching[bestIdx])
		matching = append(matching[:bestIdx], matching[bestIdx+1:]...)
	}

	for _, r := range other {
		if freed >= toFree {
			break
		}
		evictFrom(r)
	}

	s.config.Logger.Printf("gc: freed %d bytes, evicted %d rows (target timeline %q)", freed, evictedCount, target.Timeline)
	return events, gc.Stats{BytesFreed: freed, RowsEvicted: evictedCount}
}

func (s *Store) totalTemporalBytesLocked() int64 {
	var total int64
	for _, byTL := range s.indexed {
		for _, tbl := range byTL {
			total += tbl.ByteSize()
		}
	}
	return total
}

// LatestAt resolves the store's cached query surface (spec.md §6).
func (s *Store) LatestAt(path entitypath.EntityPath, tl string, t timeline.TimeInt, components []component.Name) map[component.Name]query.Result {
	static, indexed := s.lookupTables(path, tl)
	out := make(map[component.Name]query.Result, len(components))
	for _, c := range components {
		k := querycache.NewKey(path, tl, c)
		if res, found := s.cache.LatestAt(k, static, indexed, t); found {
			out[c] = res
		}
	}
	return out
}

// LatestAtBypass resolves the same query without touching the cache,
// for cache-coherence verification (spec.md §8).
func (s *Store) LatestAtBypass(path entitypath.EntityPath, tl string, t timeline.TimeInt, components []component.Name) map[component.Name]query.Result {
	static, indexed := s.lookupTables(path, tl)
	return query.LatestAt(static, indexed, t, components)
}

// Range resolves the store's cached range query surface (spec.md §6).
// Each requested component is cached independently (the cache key is
// per-component); this merges the per-component results back into
// one row per (data_time, row_id), matching the grouping Range
// produces when bypassing the cache.
func (s *Store) Range(path entitypath.EntityPath, tl string, t0, t1 timeline.TimeInt, components []component.Name) []query.RangeRow {
	static, indexed := s.lookupTables(path, tl)

	type mergeKey struct {
		static bool
		t      timeline.TimeInt
		id     rowid.RowID
	}
	merged := make(map[mergeKey]*query.RangeRow)
	var staticOrder, temporalOrder []mergeKey

	for _, c := range components {
		k := querycache.NewKey(path, tl, c)
		for _, r := range s.cache.Range(k, static, indexed, t0, t1) {
			var mk mergeKey
			if r.DataTime.IsStatic() {
				mk = mergeKey{static: true, id: r.RowID}
			} else {
				mk = mergeKey{t: r.DataTime.Value(), id: r.RowID}
			}
			existing, ok := merged[mk]
			if !ok {
				row := query.RangeRow{DataTime: r.DataTime, RowID: r.RowID, Cells: make(map[component.Name]cell.Cell)}
				merged[mk] = &row
				existing = &row
				if mk.static {
					staticOrder = append(staticOrder, mk)
				} else {
					temporalOrder = append(temporalOrder, mk)
				}
			}
			for name, cl := range r.Cells {
				existing.Cells[name] = cl
			}
		}
	}

	sort.Slice(temporalOrder, func(i, j int) bool {
		a, b := temporalOrder[i], temporalOrder[j]
		if a.t != b.t {
			return a.t < b.t
		}
		return a.id.Less(b.id)
	})

	out := make([]query.RangeRow, 0, len(staticOrder)+len(temporalOrder))
	for _, mk := range staticOrder {
		out = append(out, *merged[mk])
	}
	for _, mk := range temporalOrder {
		out = append(out, *merged[mk])
	}
	return out
}

// RangeBypass resolves the same range query without touching the
// cache.
func (s *Store) RangeBypass(path entitypath.EntityPath, tl string, t0, t1 timeline.TimeInt, components []component.Name) []query.RangeRow {
	static, indexed := s.lookupTables(path, tl)
	return query.Range(static, indexed, t0, t1, components)
}

func (s *Store) lookupTables(path entitypath.EntityPath, tl string) (*statictable.Table, *indextable.Table) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	eh := path.Hash()
	static := s.static[eh]
	var indexed *indextable.Table
	if byTL, ok := s.indexed[eh]; ok {
		indexed = byTL[tl]
	}
	return static, indexed
}

// Subscribe registers a subscriber for the store's event stream.
func (s *Store) Subscribe(sub storeevent.Subscriber) storeevent.Handle {
	return s.events.Subscribe(sub)
}

// Unsubscribe removes a previously registered subscriber.
func (s *Store) Unsubscribe(h storeevent.Handle) {
	s.events.Unsubscribe(h)
}
