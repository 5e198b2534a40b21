package matrix_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmine/coocscan/internal/checkpoint"
	"github.com/graphmine/coocscan/internal/concept"
	"github.com/graphmine/coocscan/internal/matrix"
)

func newSidecarIndex(t *testing.T) *concept.Index {
	t.Helper()

	path := filepath.Join(t.TempDir(), "concepts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"concepts":[
		{"id":"A","label":"alpha","domain":"d1"},
		{"id":"B","label":"beta"},
		{"id":"C"},
		{"id":"D"}
	]}`), 0o600))

	idx, err := concept.LoadIndex(path, "")
	require.NoError(t, err)

	return idx
}

func TestBuildIndexFile(t *testing.T) {
	t.Parallel()

	m := matrix.Assemble(newTestAccumulator())
	idx := newSidecarIndex(t)

	stats := checkpoint.RunStats{
		RecordsTotal:   3,
		RecordsMatched: 3,
		UnitsOK:        1,
		StartedAt:      time.Now().UTC().Add(-time.Minute),
	}

	file := matrix.BuildIndexFile(m, idx, stats, 0.3)

	require.Len(t, file.Rows, int(m.N))
	assert.Equal(t, "A", file.Rows[0].ID)
	assert.Equal(t, "alpha", file.Rows[0].Label)
	assert.Equal(t, "d1", file.Rows[0].Domain)
	assert.InDelta(t, 3.0, file.Rows[0].Diagonal, 1e-12)
	assert.Equal(t, 2, file.Rows[0].Degree)

	assert.Equal(t, int64(3), file.Summary.RecordsTotal)
	assert.Equal(t, m.NNZ(), file.Summary.NNZ)
	assert.InDelta(t, 0.3, file.Summary.Threshold, 1e-12)
	assert.False(t, file.Summary.FinishedAt.IsZero())
}

func TestIndexFile_WriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	m := matrix.Assemble(newTestAccumulator())
	idx := newSidecarIndex(t)
	file := matrix.BuildIndexFile(m, idx, checkpoint.RunStats{}, 0.3)

	path := filepath.Join(t.TempDir(), "matrix_index.json")
	require.NoError(t, matrix.WriteIndexFile(path, file))

	loaded, err := matrix.ReadIndexFile(path)
	require.NoError(t, err)

	require.Len(t, loaded.Rows, len(file.Rows))
	assert.Equal(t, file.Rows[0], loaded.Rows[0])
	assert.Equal(t, file.Summary.NNZ, loaded.Summary.NNZ)
}

func TestReadIndexFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := matrix.ReadIndexFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
