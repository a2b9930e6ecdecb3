// Package gc defines the targets and statistics of target-driven
// garbage collection (spec.md §4.8, component C8): how many bytes of
// temporal data to free, along which timeline, and which rows to
// protect. The oldest-first eviction walk itself is store.Store.Gc.
package gc

import (
	"github.com/loglake/loglake/pkg/rowid"
)

// TargetKind distinguishes the two ways a caller can express how much
// to evict.
type TargetKind int

const (
	DropFraction TargetKind = iota
	DropToBudget
)

// Target describes how much to evict and along which timeline to
// measure "oldest". Protect, if non-nil, marks rows that must be left
// resident even if they are otherwise due for eviction (spec.md §4.8
// step 4); they are accounted as freeing 0 bytes.
type Target struct {
	Kind     TargetKind
	Fraction float64 // used when Kind == DropFraction, in [0,1]
	Budget   int64   // used when Kind == DropToBudget
	Timeline string
	Protect  func(rowid.RowID) bool
}

// NewDropFraction builds a Target that frees approximately fraction of
// the store's current temporal bytes.
func NewDropFraction(timelineName string, fraction float64, protect func(rowid.RowID) bool) Target {
	return Target{Kind: DropFraction, Fraction: fraction, Timeline: timelineName, Protect: protect}
}

// NewDropToBudget builds a Target that frees bytes until at most
// budget bytes of temporal data remain.
func NewDropToBudget(timelineName string, budget int64, protect func(rowid.RowID) bool) Target {
	return Target{Kind: DropToBudget, Budget: budget, Timeline: timelineName, Protect: protect}
}

// BytesToFree computes the absolute number of bytes a Target wants
// freed, given the current total temporal byte size.
func (t Target) BytesToFree(currentTotal int64) int64 {
	switch t.Kind {
	case DropFraction:
		f := t.Fraction
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		return int64(float64(currentTotal) * f)
	case DropToBudget:
		if currentTotal <= t.Budget {
			return 0
		}
		return currentTotal - t.Budget
	default:
		return 0
	}
}

// Stats summarizes the outcome of one GC run.
type Stats struct {
	BytesFreed  int64
	RowsEvicted int
}
