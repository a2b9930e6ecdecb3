// Package timeline implements Timeline, TimeInt, TimePoint and
// DataTime: the multi-dimensional timestamp model described in
// spec.md §3.
package timeline

import (
	"fmt"
	"math"
)

// Kind distinguishes the two supported timeline types.
type Kind int

const (
	// Sequence is an int64 frame/step counter.
	Sequence Kind = iota
	// Time is int64 nanoseconds since the Unix epoch.
	Time
)

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "Sequence"
	case Time:
		return "Time"
	default:
		return "Unknown"
	}
}

// Timeline is a named, typed axis, e.g. {"frame", Sequence} or
// {"log_time", Time}.
type Timeline struct {
	Name string
	Kind Kind
}

func New(name string, kind Kind) Timeline { return Timeline{Name: name, Kind: kind} }

func (t Timeline) String() string { return fmt.Sprintf("%s(%s)", t.Name, t.Kind) }

// TimeInt is a signed 64-bit value interpreted according to its
// timeline. TimeIntMin and TimeIntMax are reserved sentinels used as
// bucket lower bounds and range-query open ends.
type TimeInt int64

const (
	TimeIntMin TimeInt = math.MinInt64
	TimeIntMax TimeInt = math.MaxInt64
)

// Less gives TimeInt a total order; provided as a named method
// (rather than relying on bare < on a defined numeric type) so bucket
// and query code reads the same whether comparing TimeInt or DataTime.
func (t TimeInt) Less(other TimeInt) bool { return t < other }

// TimePoint is a row's multi-timeline timestamp: a mapping from
// timeline name to (kind, value). An empty TimePoint means the row is
// static (spec.md §3). TimePoint is a value type; mutating methods
// return a new TimePoint rather than aliasing the receiver's backing
// map, so a Row's TimePoint field stays immutable post-insertion
// (invariant 2).
type TimePoint struct {
	values map[string]Timeline
	times  map[string]TimeInt
}

// Empty is the zero TimePoint (static).
var Empty = TimePoint{}

// NewTimePoint builds a TimePoint from timeline/value pairs, applying
// last-write-wins per timeline name in call order. Returns
// TimelineTypeMismatchError if the same timeline name is given two
// different Kinds.
func NewTimePoint(entries ...struct {
	Timeline Timeline
	Value    TimeInt
}) (TimePoint, error) {
	tp := TimePoint{}
	for _, e := range entries {
		var err error
		tp, err = tp.Insert(e.Timeline, e.Value)
		if err != nil {
			return TimePoint{}, err
		}
	}
	return tp, nil
}

// Insert returns a copy of tp with timeline set to value (last write
// wins if timeline.Name was already present with the same Kind), or
// an error if timeline.Name was already present with a different
// Kind (spec.md §4.1).
func (tp TimePoint) Insert(tl Timeline, value TimeInt) (TimePoint, error) {
	if existing, ok := tp.values[tl.Name]; ok && existing.Kind != tl.Kind {
		return TimePoint{}, &TimelineTypeMismatchError{
			Name: tl.Name, Existing: existing.Kind, Got: tl.Kind,
		}
	}
	out := tp.clone()
	out.values[tl.Name] = tl
	out.times[tl.Name] = value
	return out, nil
}

// UnionMax merges other into tp, keeping the larger TimeInt value per
// timeline where both sides define it (spec.md §4.1's union_max).
// Timelines present in only one side pass through unchanged.
func (tp TimePoint) UnionMax(other TimePoint) (TimePoint, error) {
	out := tp.clone()
	for name, tl := range other.values {
		otherVal := other.times[name]
		if existing, ok := out.values[name]; ok {
			if existing.Kind != tl.Kind {
				return TimePoint{}, &TimelineTypeMismatchError{
					Name: name, Existing: existing.Kind, Got: tl.Kind,
				}
			}
			if otherVal > out.times[name] {
				out.times[name] = otherVal
			}
			continue
		}
		out.values[name] = tl
		out.times[name] = otherVal
	}
	return out, nil
}

// Get returns the TimeInt value for timeline name, if present.
func (tp TimePoint) Get(name string) (TimeInt, bool) {
	v, ok := tp.times[name]
	return v, ok
}

// IsStatic reports whether the TimePoint carries no timelines at all.
func (tp TimePoint) IsStatic() bool { return len(tp.times) == 0 }

// Timelines returns the timelines (name and kind) present in tp, in
// no particular order.
func (tp TimePoint) Timelines() []Timeline {
	out := make([]Timeline, 0, len(tp.values))
	for _, tl := range tp.values {
		out = append(out, tl)
	}
	return out
}

func (tp TimePoint) clone() TimePoint {
	out := TimePoint{
		values: make(map[string]Timeline, len(tp.values)),
		times:  make(map[string]TimeInt, len(tp.times)),
	}
	for k, v := range tp.values {
		out.values[k] = v
	}
	for k, v := range tp.times {
		out.times[k] = v
	}
	return out
}

// TimelineTypeMismatchError reports that a TimePoint construction
// mixed two timelines with the same name but different Kinds
// (spec.md §4.1, §7).
type TimelineTypeMismatchError struct {
	Name     string
	Existing Kind
	Got      Kind
}

func (e *TimelineTypeMismatchError) Error() string {
	return fmt.Sprintf("timeline %q: type mismatch: existing %s, got %s", e.Name, e.Existing, e.Got)
}

// DataTime is the timestamp attached to a query result: either a
// temporal TimeInt on some timeline, or the distinguished STATIC
// marker, which the spec describes as "logically outside any
// ordering" (spec.md §3). Modeling it as its own type — rather than
// reserving a TimeInt sentinel value that might collide with a real
// timestamp — keeps "is this result static" a type-level question
// instead of a magic-number comparison.
type DataTime struct {
	value  TimeInt
	static bool
}

// Temporal builds a non-static DataTime.
func Temporal(t TimeInt) DataTime { return DataTime{value: t} }

// Static is the distinguished STATIC marker.
var Static = DataTime{static: true}

// IsStatic reports whether d is the STATIC marker.
func (d DataTime) IsStatic() bool { return d.static }

// Value returns the underlying TimeInt; only meaningful when
// !d.IsStatic().
func (d DataTime) Value() TimeInt { return d.value }

func (d DataTime) String() string {
	if d.static {
		return "STATIC"
	}
	return fmt.Sprintf("%d", d.value)
}
