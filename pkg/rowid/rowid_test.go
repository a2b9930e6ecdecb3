package rowid_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loglake/loglake/pkg/rowid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndNonNil(t *testing.T) {
	a := rowid.New()
	b := rowid.New()
	require.NotEqual(t, a, b)
	assert.False(t, a.IsNil())
	assert.False(t, b.IsNil())
}

func TestOrderingIsTimeCorrelated(t *testing.T) {
	a := rowid.New()
	time.Sleep(2 * time.Millisecond)
	b := rowid.New()

	assert.True(t, a.Less(b))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestNilIsNeverProduced(t *testing.T) {
	for i := 0; i < 1000; i++ {
		assert.False(t, rowid.New().IsNil())
	}
}

func TestStringRoundTripsThroughUUID(t *testing.T) {
	a := rowid.New()
	assert.Len(t, a.String(), 36)

	parsed, err := uuid.Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, rowid.RowID(parsed))
}
