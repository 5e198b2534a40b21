package matrix_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmine/coocscan/internal/matrix"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cooc.csr")

	written := matrix.Assemble(newTestAccumulator())
	require.NoError(t, written.Write(path))

	loaded, err := matrix.Read(path)
	require.NoError(t, err)

	require.Equal(t, written.N, loaded.N)
	require.Equal(t, written.NNZ(), loaded.NNZ())
	assert.Equal(t, written.RowPtr, loaded.RowPtr)
	assert.Equal(t, written.ColInd, loaded.ColInd)
	assert.Equal(t, written.Values, loaded.Values)
	require.NoError(t, loaded.VerifySymmetric())
}

func TestWrite_NoTempLeftovers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cooc.csr")

	require.NoError(t, matrix.Assemble(newTestAccumulator()).Write(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".tmp-"),
			"temp file left behind: %s", entry.Name())
	}
}

func TestRead_BadMagic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bogus.csr")
	require.NoError(t, os.WriteFile(path, []byte("XXXX and more garbage to fill the header"), 0o600))

	_, err := matrix.Read(path)
	require.ErrorIs(t, err, matrix.ErrBadMagic)
}

func TestRead_Truncated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cooc.csr")
	require.NoError(t, matrix.Assemble(newTestAccumulator()).Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	cut := filepath.Join(dir, "cut.csr")
	require.NoError(t, os.WriteFile(cut, data[:len(data)-8], 0o600))

	_, err = matrix.Read(cut)
	require.Error(t, err)
}

func TestRead_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := matrix.Read(filepath.Join(t.TempDir(), "absent.csr"))
	require.Error(t, err)
}
