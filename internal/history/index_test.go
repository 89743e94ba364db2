package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_WindowForCreatesLazily(t *testing.T) {
	x, err := NewIndex(3)
	require.NoError(t, err)

	_, ok := x.Lookup(JobKey("etl"))
	assert.False(t, ok)

	w := x.WindowFor(JobKey("etl"))
	assert.Equal(t, 3, w.Capacity())
	assert.Same(t, w, x.WindowFor(JobKey("etl")))

	_, ok = x.Lookup(JobKey("etl"))
	assert.True(t, ok)
}

func TestIndex_JobAndTaskKeysAreDistinct(t *testing.T) {
	x, err := NewIndex(3)
	require.NoError(t, err)

	x.WindowFor(JobKey("etl")).Upsert("e1", Slot{ExecutionID: "e1"})
	x.WindowFor(TaskKey("etl", "extract")).Upsert("e1", Slot{ExecutionID: "e1-extract"})
	x.WindowFor(TaskKey("report", "extract")).Upsert("e2", Slot{ExecutionID: "e2-extract"})

	assert.Equal(t, []EntityKey{
		JobKey("etl"),
		TaskKey("etl", "extract"),
		TaskKey("report", "extract"),
	}, x.AllKeys())
	assert.Equal(t, 1, x.WindowFor(TaskKey("etl", "extract")).Len())
}

func TestIndex_SetCapacityClearsAllWindows(t *testing.T) {
	x, err := NewIndex(2)
	require.NoError(t, err)
	x.WindowFor(JobKey("etl")).Upsert("e1", Slot{ExecutionID: "e1"})
	x.WindowFor(TaskKey("etl", "load")).Upsert("e1", Slot{ExecutionID: "e1-load"})

	require.NoError(t, x.SetCapacity(5))

	for _, key := range x.AllKeys() {
		w := x.WindowFor(key)
		assert.Equal(t, 0, w.Len(), key.String())
		assert.Equal(t, 5, w.Capacity(), key.String())
	}
	assert.Equal(t, 5, x.WindowFor(JobKey("new")).Capacity())
}

func TestIndex_SetCapacityRejectsZero(t *testing.T) {
	x, err := NewIndex(2)
	require.NoError(t, err)

	assert.ErrorIs(t, x.SetCapacity(0), ErrInvalidCapacity)
	assert.Equal(t, 2, x.Capacity())
}

func TestEntityKey_String(t *testing.T) {
	assert.Equal(t, "etl", JobKey("etl").String())
	assert.Equal(t, "etl/load", TaskKey("etl", "load").String())
	assert.False(t, JobKey("etl").IsTask())
	assert.True(t, TaskKey("etl", "load").IsTask())
}
