package scanner_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmine/coocscan/internal/checkpoint"
	"github.com/graphmine/coocscan/internal/matrix"
	"github.com/graphmine/coocscan/internal/scanner"
)

const testThreshold = 0.3

// corpusFixture is a corpus root plus its concept index on disk.
type corpusFixture struct {
	root      string
	indexPath string
	outDir    string
}

func newFixture(t *testing.T) *corpusFixture {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "corpus")
	require.NoError(t, os.MkdirAll(root, 0o750))

	indexPath := filepath.Join(base, "concepts.json")
	require.NoError(t, os.WriteFile(indexPath, []byte(`{"concepts":[
		{"id":"A","label":"alpha"},
		{"id":"B","label":"beta"},
		{"id":"C","label":"gamma"}
	]}`), 0o600))

	return &corpusFixture{
		root:      root,
		indexPath: indexPath,
		outDir:    filepath.Join(base, "out"),
	}
}

// writeUnit stores the given record lines as one gzip unit under root.
func (f *corpusFixture) writeUnit(t *testing.T, rel string, lines ...string) {
	t.Helper()

	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)

	for _, line := range lines {
		_, err := zw.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func (f *corpusFixture) options() scanner.Options {
	return scanner.Options{
		Root:      f.root,
		IndexPath: f.indexPath,
		Threshold: testThreshold,
		Workers:   2,
		Cadence:   2,
		Resume:    true,
		OutputDir: f.outDir,
	}
}

func (f *corpusFixture) run(t *testing.T, opts scanner.Options) *scanner.Result {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	res, err := scanner.NewRunner(opts, logger, nil).Run(context.Background())
	require.NoError(t, err)

	return res
}

func record(id string, concepts ...string) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, `{"id":%q,"concepts":[`, id)

	for i, c := range concepts {
		if i > 0 {
			buf.WriteByte(',')
		}

		fmt.Fprintf(&buf, `{"id":%q,"score":0.9}`, c)
	}

	buf.WriteString("]}")

	return buf.String()
}

func TestRunner_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writeUnit(t, "u0.gz", record("r1", "A", "B"))
	f.writeUnit(t, "u1.gz", record("r2", "A", "B", "C"))
	f.writeUnit(t, "u2.gz", record("r3", "A"))

	res := f.run(t, f.options())

	assert.Equal(t, 3, res.UnitsTotal)
	assert.Equal(t, int64(3), res.Stats.RecordsTotal)
	assert.Equal(t, int64(3), res.Stats.RecordsMatched)
	assert.Equal(t, int64(3), res.Stats.UnitsOK)

	m, err := matrix.Read(res.MatrixPath)
	require.NoError(t, err)
	require.NoError(t, m.VerifySymmetric())

	// Rows follow lexicographic identifier order: A=0, B=1, C=2.
	assert.InDelta(t, 1.0+1.0/3.0, m.At(0, 1), 1e-12)
	assert.InDelta(t, 3.0, m.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, m.At(1, 1), 1e-12)
	assert.InDelta(t, 1.0, m.At(2, 2), 1e-12)

	sidecar, err := matrix.ReadIndexFile(res.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, "A", sidecar.Rows[0].ID)
	assert.Equal(t, int64(3), sidecar.Summary.RecordsTotal)

	// Success retires the checkpoint and the lock.
	assert.NoFileExists(t, checkpoint.NewManager(f.outDir).Path())
	assert.NoFileExists(t, filepath.Join(f.outDir, "scan.lock"))
}

func TestRunner_ResumeEquivalence(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) *corpusFixture {
		f := newFixture(t)

		for i := 0; i < 6; i++ {
			f.writeUnit(t, fmt.Sprintf("u%d.gz", i),
				record(fmt.Sprintf("r%d-1", i), "A", "B"),
				record(fmt.Sprintf("r%d-2", i), "B", "C"),
				record(fmt.Sprintf("r%d-3", i), "A", "B", "C"))
		}

		return f
	}

	// Straight-through run.
	direct := build(t)
	directRes := direct.run(t, direct.options())

	// Split run: first pass limited to half the units, second resumes.
	split := build(t)

	limited := split.options()
	limited.Limit = 3
	split.run(t, limited)

	splitRes := split.run(t, split.options())

	assert.Equal(t, 3, splitRes.UnitsResumed)
	assert.Equal(t, directRes.Stats.RecordsTotal, splitRes.Stats.RecordsTotal)

	directM, err := matrix.Read(directRes.MatrixPath)
	require.NoError(t, err)

	splitM, err := matrix.Read(splitRes.MatrixPath)
	require.NoError(t, err)

	require.Equal(t, directM.NNZ(), splitM.NNZ())
	assert.Equal(t, directM.RowPtr, splitM.RowPtr)
	assert.Equal(t, directM.ColInd, splitM.ColInd)

	for i := range directM.Values {
		assert.InDelta(t, directM.Values[i], splitM.Values[i], 1e-9)
	}
}

func TestRunner_LimitLeavesCheckpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writeUnit(t, "u0.gz", record("r1", "A", "B"))
	f.writeUnit(t, "u1.gz", record("r2", "B", "C"))

	opts := f.options()
	opts.Limit = 1

	res := f.run(t, opts)
	assert.Equal(t, 1, res.UnitsTotal)

	// Coverage is incomplete: the checkpoint survives for a later resume.
	assert.FileExists(t, checkpoint.NewManager(f.outDir).Path())
}

func TestRunner_TolerantOfDamagedUnits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writeUnit(t, "good.gz", record("r1", "A", "B"))

	// Not gzip at all: the unit fails to open and is recorded as failed.
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "broken.gz"),
		[]byte("this is not gzip"), 0o600))

	// Valid gzip cut mid-stream: decodes partially.
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)
	for i := 0; i < 200; i++ {
		_, err := zw.Write([]byte(record(fmt.Sprintf("t%d", i), "B", "C") + "\n"))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "torn.gz"),
		buf.Bytes()[:buf.Len()/2], 0o600))

	res := f.run(t, f.options())

	assert.Equal(t, int64(1), res.Stats.UnitsOK)
	assert.Equal(t, int64(1), res.Stats.UnitsFailed)
	assert.Equal(t, int64(1), res.Stats.UnitsPartial)

	// The clean unit's weights are intact.
	m, err := matrix.Read(res.MatrixPath)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.At(0, 1), 1e-12)
}

func TestRunner_EmptyRootFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := scanner.NewRunner(f.options(), logger, nil).Run(context.Background())
	require.ErrorIs(t, err, scanner.ErrNoUnits)
}

func TestRunner_CancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	for i := 0; i < 10; i++ {
		f.writeUnit(t, fmt.Sprintf("u%d.gz", i), record(fmt.Sprintf("r%d", i), "A", "B"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	res, err := scanner.NewRunner(f.options(), logger, nil).Run(ctx)
	require.ErrorIs(t, err, scanner.ErrInterrupted)

	// Interrupted runs leave a checkpoint behind.
	assert.FileExists(t, checkpoint.NewManager(f.outDir).Path())

	// Progress statistics still reach the caller for the summary; no
	// outputs were published.
	require.NotNil(t, res)
	assert.Equal(t, 10, res.UnitsTotal)
	assert.Empty(t, res.MatrixPath)
	assert.Empty(t, res.IndexPath)
}

func TestRunner_FreshRunDiscardsStaleCheckpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writeUnit(t, "u0.gz", record("r1", "A", "B"))

	// First pass interrupted: checkpoint left behind.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_, err := scanner.NewRunner(f.options(), logger, nil).Run(ctx)
	require.ErrorIs(t, err, scanner.ErrInterrupted)

	// Fresh run with resume disabled ignores it and rescans everything.
	opts := f.options()
	opts.Resume = false

	res := f.run(t, opts)
	assert.Equal(t, 0, res.UnitsResumed)
	assert.Equal(t, int64(1), res.Stats.RecordsTotal)
}
