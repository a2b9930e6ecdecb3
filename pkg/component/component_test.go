package component_test

import (
	"errors"
	"testing"

	"github.com/loglake/loglake/pkg/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDatatype string

func (t testDatatype) DatatypeName() string { return string(t) }

func TestRegisterOrCheckFirstWriteWins(t *testing.T) {
	r := component.NewRegistry()
	require.NoError(t, r.RegisterOrCheck("color", testDatatype("u8x4")))

	dt, ok := r.Lookup("color")
	require.True(t, ok)
	assert.Equal(t, testDatatype("u8x4"), dt)
}

func TestRegisterOrCheckSameTypeRepeatedly(t *testing.T) {
	r := component.NewRegistry()
	require.NoError(t, r.RegisterOrCheck("color", testDatatype("u8x4")))
	require.NoError(t, r.RegisterOrCheck("color", testDatatype("u8x4")))
}

func TestRegisterOrCheckMismatchRejected(t *testing.T) {
	r := component.NewRegistry()
	require.NoError(t, r.RegisterOrCheck("color", testDatatype("u8x4")))

	err := r.RegisterOrCheck("color", testDatatype("f32x3"))
	require.Error(t, err)

	var mismatch *component.MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, component.Name("color"), mismatch.Component)
}

func TestRegisterOrCheckRejectsNilDatatype(t *testing.T) {
	r := component.NewRegistry()
	err := r.RegisterOrCheck("color", nil)
	require.Error(t, err)
}

func TestLookupMissingComponent(t *testing.T) {
	r := component.NewRegistry()
	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}
