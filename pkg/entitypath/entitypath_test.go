package entitypath_test

import (
	"testing"

	"github.com/loglake/loglake/pkg/entitypath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashStableAndDeterministic(t *testing.T) {
	a := entitypath.FromNames("world", "robot", "camera")
	b := entitypath.FromNames("world", "robot", "camera")
	require.Equal(t, a.Hash(), b.Hash())
	assert.True(t, a.Equal(b))
}

func TestHashDistinguishesConcatenationAmbiguity(t *testing.T) {
	// {"a", "b"} must not collide with {"ab"} despite naive
	// concatenation producing the same bytes.
	ab := entitypath.FromNames("a", "b")
	concat := entitypath.FromNames("ab")
	assert.NotEqual(t, ab.Hash(), concat.Hash())
	assert.False(t, ab.Equal(concat))
}

func TestHashDistinguishesNameFromIndex(t *testing.T) {
	named := entitypath.New(entitypath.Name("3"))
	indexed := entitypath.New(entitypath.Index(3))
	assert.NotEqual(t, named.Hash(), indexed.Hash())
}

func TestChildIsImmutable(t *testing.T) {
	parent := entitypath.FromNames("world")
	child := parent.Child("robot")

	assert.Equal(t, 1, parent.Len())
	assert.Equal(t, 2, child.Len())
	assert.Equal(t, "/world", parent.String())
	assert.Equal(t, "/world/robot", child.String())
}

func TestRootPathString(t *testing.T) {
	assert.Equal(t, "/", entitypath.Root.String())
	assert.Equal(t, 0, entitypath.Root.Len())
}

func TestOrderMatters(t *testing.T) {
	ab := entitypath.FromNames("a", "b")
	ba := entitypath.FromNames("b", "a")
	assert.False(t, ab.Equal(ba))
	assert.NotEqual(t, ab.Hash(), ba.Hash())
}
