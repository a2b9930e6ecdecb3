package storeevent_test

import (
	"testing"

	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/loglake/loglake/pkg/storeevent"
	"github.com/loglake/loglake/pkg/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchDeliversInOrderToAllSubscribers(t *testing.T) {
	r := storeevent.NewRegistry()
	var seenA, seenB []uint64
	r.Subscribe(func(ev storeevent.Event) { seenA = append(seenA, ev.EventID) })
	r.Subscribe(func(ev storeevent.Event) { seenB = append(seenB, ev.EventID) })

	path := entitypath.FromNames("e")
	for i := uint64(1); i <= 3; i++ {
		r.Dispatch(storeevent.Event{
			EventID: i,
			Diff: storeevent.Diff{
				Kind:       storeevent.Addition,
				RowID:      rowid.New(),
				TimePoint:  timeline.Empty,
				EntityPath: path,
			},
		})
	}

	assert.Equal(t, []uint64{1, 2, 3}, seenA)
	assert.Equal(t, []uint64{1, 2, 3}, seenB)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := storeevent.NewRegistry()
	var count int
	h := r.Subscribe(func(ev storeevent.Event) { count++ })
	r.Dispatch(storeevent.Event{EventID: 1})
	r.Unsubscribe(h)
	r.Dispatch(storeevent.Event{EventID: 2})

	assert.Equal(t, 1, count)
}

func TestUnsubscribeUnknownHandleIsNoOp(t *testing.T) {
	r := storeevent.NewRegistry()
	require.NotPanics(t, func() { r.Unsubscribe(storeevent.Handle(999)) })
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Addition", storeevent.Addition.String())
	assert.Equal(t, "Deletion", storeevent.Deletion.String())
}
