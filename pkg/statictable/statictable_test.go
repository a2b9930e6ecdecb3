package statictable_test

import (
	"testing"

	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/statictable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDatatype string

func (t testDatatype) DatatypeName() string { return string(t) }

func TestInsertAndGet(t *testing.T) {
	tbl := statictable.New()
	id := rowid.New()
	c := cell.New("color", testDatatype("t"), 1, 1, 1)

	ok := tbl.Insert("color", id, c)
	assert.True(t, ok)

	e, found := tbl.Get("color")
	require.True(t, found)
	assert.Equal(t, id, e.RowID)
	assert.True(t, e.Cell.SameAs(c))
}

func TestInsertRejectsOlderRowID(t *testing.T) {
	tbl := statictable.New()
	newer := rowid.New()
	older := rowid.New()
	// Force ordering regardless of generation timing.
	if newer.Less(older) {
		newer, older = older, newer
	}

	c1 := cell.New("color", testDatatype("t"), 1, 1, 1)
	c2 := cell.New("color", testDatatype("t"), 2, 1, 1)

	require.True(t, tbl.Insert("color", newer, c1))
	accepted := tbl.Insert("color", older, c2)
	assert.False(t, accepted, "a row older than the incumbent must be rejected")

	e, _ := tbl.Get("color")
	assert.True(t, e.Cell.SameAs(c1), "incumbent value must survive a rejected older write")
}

func TestInsertAcceptsStrictlyNewerRowID(t *testing.T) {
	tbl := statictable.New()
	older := rowid.New()
	newer := rowid.New()
	if newer.Less(older) {
		newer, older = older, newer
	}

	c1 := cell.New("color", testDatatype("t"), 1, 1, 1)
	c2 := cell.New("color", testDatatype("t"), 2, 1, 1)

	require.True(t, tbl.Insert("color", older, c1))
	accepted := tbl.Insert("color", newer, c2)
	assert.True(t, accepted)

	e, _ := tbl.Get("color")
	assert.True(t, e.Cell.SameAs(c2))
}

func TestComponentsAndLen(t *testing.T) {
	tbl := statictable.New()
	assert.Equal(t, 0, tbl.Len())

	tbl.Insert("color", rowid.New(), cell.New("color", testDatatype("t"), 1, 1, 1))
	tbl.Insert("size", rowid.New(), cell.New("size", testDatatype("t"), 1, 1, 1))

	assert.Equal(t, 2, tbl.Len())
	assert.ElementsMatch(t, []component.Name{"color", "size"}, tbl.Components())
}
