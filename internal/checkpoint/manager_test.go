package checkpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmine/coocscan/internal/accum"
	"github.com/graphmine/coocscan/internal/checkpoint"
)

// Test scan parameters shared across checkpoint tests.
const (
	testThreshold = 0.3
	testIndexSize = int32(4)
)

func newPopulatedState(t *testing.T) *checkpoint.State {
	t.Helper()

	a := accum.New(testIndexSize)
	a.AddRecord([]int32{0, 1})
	a.AddRecord([]int32{0, 1, 2})

	state := checkpoint.NewState(testThreshold, testIndexSize)
	state.RecordUnit("2024/part_000.gz", checkpoint.UnitResult{
		Status:  checkpoint.StatusOK,
		Records: 2,
		Matched: 2,
	})
	state.RecordUnit("2024/part_001.gz", checkpoint.UnitResult{
		Status:  checkpoint.StatusPartial,
		Records: 1,
		Matched: 1,
	})
	state.Accumulator = a.Snapshot()

	return state
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mgr := checkpoint.NewManager(dir)

	require.NoError(t, mgr.Save(newPopulatedState(t)))

	loaded, err := mgr.Load(testThreshold, testIndexSize)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.True(t, loaded.Completed("2024/part_000.gz"))
	assert.True(t, loaded.Completed("2024/part_001.gz"))
	assert.False(t, loaded.Completed("2024/part_002.gz"))
	assert.Equal(t, int64(3), loaded.Stats.RecordsTotal)
	assert.Equal(t, int64(1), loaded.Stats.UnitsOK)
	assert.Equal(t, int64(1), loaded.Stats.UnitsPartial)
	assert.False(t, loaded.Stats.SavedAt.IsZero())

	restored := accum.Restore(loaded.Accumulator)
	assert.InDelta(t, 1.0+1.0/3.0, restored.PairWeight(0, 1), 1e-12)
}

func TestManager_LoadAbsent(t *testing.T) {
	t.Parallel()

	mgr := checkpoint.NewManager(t.TempDir())

	loaded, err := mgr.Load(testThreshold, testIndexSize)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestManager_VersionMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mgr := checkpoint.NewManager(dir)

	state := newPopulatedState(t)
	state.Version = checkpoint.SchemaVersion + 1
	require.NoError(t, mgr.Save(state))

	_, err := mgr.Load(testThreshold, testIndexSize)
	require.ErrorIs(t, err, checkpoint.ErrVersionMismatch)
}

func TestManager_ParameterDrift(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mgr := checkpoint.NewManager(dir)
	require.NoError(t, mgr.Save(newPopulatedState(t)))

	_, err := mgr.Load(0.5, testIndexSize)
	require.ErrorIs(t, err, checkpoint.ErrParameterDrift)

	_, err = mgr.Load(testThreshold, testIndexSize+1)
	require.ErrorIs(t, err, checkpoint.ErrParameterDrift)
}

func TestManager_Discard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mgr := checkpoint.NewManager(dir)
	require.NoError(t, mgr.Save(newPopulatedState(t)))

	require.NoError(t, mgr.Discard())

	loaded, err := mgr.Load(testThreshold, testIndexSize)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Discarding again is a no-op.
	require.NoError(t, mgr.Discard())
}

func TestState_RecordUnitCounters(t *testing.T) {
	t.Parallel()

	state := checkpoint.NewState(testThreshold, testIndexSize)
	state.RecordUnit("a.gz", checkpoint.UnitResult{Status: checkpoint.StatusFailed})

	assert.Equal(t, int64(1), state.Stats.UnitsFailed)
	assert.True(t, state.Completed("a.gz"))
}
