package row_test

import (
	"testing"

	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/loglake/loglake/pkg/row"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDatatype string

func (t testDatatype) DatatypeName() string { return string(t) }

func TestNewRejectsNilRowID(t *testing.T) {
	_, err := row.New(rowid.Nil, entitypath.FromNames("a"), timeline.Empty, nil)
	require.Error(t, err)
}

func TestNewStaticRow(t *testing.T) {
	cells := map[component.Name]cell.Cell{
		"color": cell.New("color", testDatatype("u8x4"), []byte{1}, 1, 1),
	}
	r, err := row.New(rowid.New(), entitypath.FromNames("a"), timeline.Empty, cells)
	require.NoError(t, err)
	assert.True(t, r.IsStatic())
	assert.False(t, r.IsEmpty())
}

func TestNewEmptyRowIsEmpty(t *testing.T) {
	r, err := row.New(rowid.New(), entitypath.FromNames("a"), timeline.Empty, nil)
	require.NoError(t, err)
	assert.True(t, r.IsEmpty())
	assert.True(t, r.IsStatic())
}

func TestCellsAreCopiedNotAliased(t *testing.T) {
	cells := map[component.Name]cell.Cell{
		"color": cell.New("color", testDatatype("u8x4"), []byte{1}, 1, 1),
	}
	r, err := row.New(rowid.New(), entitypath.FromNames("a"), timeline.Empty, cells)
	require.NoError(t, err)

	cells["extra"] = cell.New("extra", testDatatype("u8"), []byte{2}, 1, 1)
	_, ok := r.Cells["extra"]
	assert.False(t, ok, "mutating the caller's map after New must not affect the row")
}
