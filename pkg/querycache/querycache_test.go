package querycache_test

import (
	"testing"

	"github.com/loglake/loglake/pkg/cell"
	"github.com/loglake/loglake/pkg/component"
	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/loglake/loglake/pkg/indextable"
	"github.com/loglake/loglake/pkg/query"
	"github.com/loglake/loglake/pkg/querycache"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/statictable"
	"github.com/loglake/loglake/pkg/storeevent"
	"github.com/loglake/loglake/pkg/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDatatype string

func (t testDatatype) DatatypeName() string { return string(t) }

func mkCell(name component.Name, n int) cell.Cell {
	return cell.New(name, testDatatype("t"), n, 1, int64(n))
}

func TestLatestAtCachedMatchesBypass(t *testing.T) {
	tl := timeline.New("frame", timeline.Sequence)
	indexed := indextable.New(tl, 100)
	indexed.Insert(10, rowid.New(), map[component.Name]cell.Cell{"color": mkCell("color", 1)})
	indexed.Insert(20, rowid.New(), map[component.Name]cell.Cell{"color": mkCell("color", 2)})

	path := entitypath.FromNames("e")
	c := querycache.New()
	k := querycache.NewKey(path, "frame", "color")

	bypass := query.LatestAt(nil, indexed, 15, []component.Name{"color"})["color"]
	cached, found := c.LatestAt(k, nil, indexed, 15)
	require.True(t, found)
	assert.True(t, cached.Cell.SameAs(bypass.Cell))
	assert.Equal(t, bypass.RowID, cached.RowID)

	// second call must hit the cache and still match bypass.
	cached2, _ := c.LatestAt(k, nil, indexed, 15)
	assert.True(t, cached2.Cell.SameAs(bypass.Cell))
}

func TestLatestAtInvalidatedAfterEvent(t *testing.T) {
	tl := timeline.New("frame", timeline.Sequence)
	indexed := indextable.New(tl, 100)
	id1 := rowid.New()
	indexed.Insert(10, id1, map[component.Name]cell.Cell{"color": mkCell("color", 1)})

	path := entitypath.FromNames("e")
	c := querycache.New()
	k := querycache.NewKey(path, "frame", "color")

	res, _ := c.LatestAt(k, nil, indexed, 100)
	assert.Equal(t, id1, res.RowID)

	id2 := rowid.New()
	indexed.Insert(30, id2, map[component.Name]cell.Cell{"color": mkCell("color", 2)})
	c.OnEvent(storeevent.Event{
		EventID: 1,
		Diff: storeevent.Diff{
			Kind:       storeevent.Addition,
			RowID:      id2,
			EntityPath: path,
			TimePoint:  mustTP(tl, 30),
			Cells:      map[component.Name]cell.Cell{"color": mkCell("color", 2)},
		},
	})

	res2, _ := c.LatestAt(k, nil, indexed, 100)
	assert.Equal(t, id2, res2.RowID, "cache must reflect the new row after invalidation, not the stale one")
}

func TestRangeCachedMatchesBypass(t *testing.T) {
	tl := timeline.New("frame", timeline.Sequence)
	indexed := indextable.New(tl, 100)
	indexed.Insert(10, rowid.New(), map[component.Name]cell.Cell{"p": mkCell("p", 1)})
	indexed.Insert(20, rowid.New(), map[component.Name]cell.Cell{"p": mkCell("p", 2)})
	indexed.Insert(30, rowid.New(), map[component.Name]cell.Cell{"p": mkCell("p", 3)})

	path := entitypath.FromNames("e")
	c := querycache.New()
	k := querycache.NewKey(path, "frame", "p")

	bypass := query.Range(nil, indexed, 0, 100, []component.Name{"p"})
	cached := c.Range(k, nil, indexed, 0, 100)
	require.Len(t, cached, len(bypass))
	for i := range bypass {
		assert.Equal(t, bypass[i].RowID, cached[i].RowID)
	}
}

func TestRangeFrontAndBackFill(t *testing.T) {
	tl := timeline.New("frame", timeline.Sequence)
	indexed := indextable.New(tl, 100)
	indexed.Insert(10, rowid.New(), map[component.Name]cell.Cell{"p": mkCell("p", 1)})
	indexed.Insert(20, rowid.New(), map[component.Name]cell.Cell{"p": mkCell("p", 2)})
	indexed.Insert(30, rowid.New(), map[component.Name]cell.Cell{"p": mkCell("p", 3)})

	path := entitypath.FromNames("e")
	c := querycache.New()
	k := querycache.NewKey(path, "frame", "p")

	mid := c.Range(k, nil, indexed, 15, 25)
	require.Len(t, mid, 1)

	wider := c.Range(k, nil, indexed, 0, 100)
	require.Len(t, wider, 3)
}

func TestStaticShortCircuitsCache(t *testing.T) {
	static := statictable.New()
	id := rowid.New()
	static.Insert("color", id, mkCell("color", 9))

	path := entitypath.FromNames("e")
	c := querycache.New()
	k := querycache.NewKey(path, "frame", "color")

	res, found := c.LatestAt(k, static, nil, 1000)
	require.True(t, found)
	assert.True(t, res.DataTime.IsStatic())
	assert.Equal(t, id, res.RowID)
}

func mustTP(tl timeline.Timeline, t timeline.TimeInt) timeline.TimePoint {
	tp, err := timeline.NewTimePoint(struct {
		Timeline timeline.Timeline
		Value    timeline.TimeInt
	}{Timeline: tl, Value: t})
	if err != nil {
		panic(err)
	}
	return tp
}
