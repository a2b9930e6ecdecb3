// Package entitypath implements EntityPath: an immutable, ordered
// sequence of path parts identifying a point in the logical entity
// hierarchy, with a stable 64-bit hash used as a primary key in the
// store's internal maps.
package entitypath

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Part is one segment of an EntityPath: either a name or an index.
// Exactly one of the two is set.
type Part struct {
	name    string
	index   uint64
	isIndex bool
}

// Name constructs a named path part, e.g. "camera".
func Name(s string) Part { return Part{name: s} }

// Index constructs an indexed path part, e.g. the 3rd element of a
// repeated field.
func Index(i uint64) Part { return Part{index: i, isIndex: true} }

// IsIndex reports whether this part is an index rather than a name.
func (p Part) IsIndex() bool { return p.isIndex }

// String renders the part the way it appears in a printed EntityPath:
// names unchanged, indices wrapped in brackets.
func (p Part) String() string {
	if p.isIndex {
		return "[" + strconv.FormatUint(p.index, 10) + "]"
	}
	return p.name
}

// EntityPath is immutable once constructed: New copies its input, and
// no method on EntityPath mutates it in place.
type EntityPath struct {
	parts []Part
	hash  uint64
}

// Root is the empty EntityPath.
var Root = EntityPath{hash: seedHash()}

// New builds an EntityPath from a sequence of parts, computing and
// caching its hash immediately so Hash() is O(1) thereafter.
func New(parts ...Part) EntityPath {
	cp := make([]Part, len(parts))
	copy(cp, parts)
	return EntityPath{parts: cp, hash: hashParts(cp)}
}

// FromNames is a convenience constructor for an all-name path, e.g.
// FromNames("world", "robot", "camera").
func FromNames(names ...string) EntityPath {
	parts := make([]Part, len(names))
	for i, n := range names {
		parts[i] = Name(n)
	}
	return New(parts...)
}

// Parts returns a defensive copy of the path's parts.
func (e EntityPath) Parts() []Part {
	cp := make([]Part, len(e.parts))
	copy(cp, e.parts)
	return cp
}

// Len reports the number of parts in the path.
func (e EntityPath) Len() int { return len(e.parts) }

// Hash returns the path's stable 64-bit hash. Equal paths (same parts,
// same order) always hash equally, across process runs, because it is
// derived from a length-prefixed byte encoding rather than Go's
// randomized map iteration or pointer identity.
func (e EntityPath) Hash() uint64 { return e.hash }

// Equal reports whether two paths have identical parts in the same
// order.
func (e EntityPath) Equal(other EntityPath) bool {
	if e.hash != other.hash || len(e.parts) != len(other.parts) {
		return false
	}
	for i := range e.parts {
		if e.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// Child appends one name part and returns a new EntityPath; the
// receiver is left unmodified.
func (e EntityPath) Child(name string) EntityPath {
	parts := append(append([]Part{}, e.parts...), Name(name))
	return New(parts...)
}

// String renders the path as a "/"-joined string, e.g. "/world/robot".
func (e EntityPath) String() string {
	if len(e.parts) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, p := range e.parts {
		if !p.isIndex {
			b.WriteByte('/')
		}
		b.WriteString(p.String())
	}
	return b.String()
}

// hashParts computes a stable 64-bit hash over a length-prefixed
// encoding of each part, so that {"a","b"} and {"ab"} never collide:
// every part starts with a one-byte tag distinguishing name parts from
// index parts; a name part then carries its byte length and bytes, an
// index part its value, both as uvarints.
func hashParts(parts []Part) uint64 {
	h := xxhash.New()
	var lenBuf [11]byte
	for _, p := range parts {
		if p.isIndex {
			lenBuf[0] = 1
			n := putUvarint(lenBuf[1:], p.index)
			h.Write(lenBuf[:1+n])
		} else {
			lenBuf[0] = 0
			n := putUvarint(lenBuf[1:], uint64(len(p.name)))
			h.Write(lenBuf[:1+n])
			h.Write([]byte(p.name))
		}
	}
	return h.Sum64()
}

func putUvarint(buf []byte, x uint64) int {
	i := 0
	for x >= 0x80 {
		buf[i] = byte(x) | 0x80
		x >>= 7
		i++
	}
	buf[i] = byte(x)
	return i + 1
}

func seedHash() uint64 {
	return hashParts(nil)
}
