package gc_test

import (
	"testing"

	"github.com/loglake/loglake/pkg/gc"
	"github.com/stretchr/testify/assert"
)

func TestDropFractionBytesToFree(t *testing.T) {
	target := gc.NewDropFraction("frame", 0.5, nil)
	assert.EqualValues(t, 500, target.BytesToFree(1000))
}

func TestDropFractionClampsOutOfRange(t *testing.T) {
	assert.EqualValues(t, 1000, gc.NewDropFraction("frame", 2.0, nil).BytesToFree(1000))
	assert.EqualValues(t, 0, gc.NewDropFraction("frame", -1.0, nil).BytesToFree(1000))
}

func TestDropToBudgetComputesDeficit(t *testing.T) {
	target := gc.NewDropToBudget("frame", 200, nil)
	assert.EqualValues(t, 800, target.BytesToFree(1000))
}

func TestDropToBudgetNoOpWhenUnderBudget(t *testing.T) {
	target := gc.NewDropToBudget("frame", 2000, nil)
	assert.EqualValues(t, 0, target.BytesToFree(1000))
}
