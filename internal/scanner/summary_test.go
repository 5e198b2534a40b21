package scanner_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/graphmine/coocscan/internal/checkpoint"
	"github.com/graphmine/coocscan/internal/scanner"
)

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	scanner.WriteSummary(&buf, &scanner.Result{
		Stats: checkpoint.RunStats{
			RecordsTotal:   1234567,
			RecordsMatched: 1200000,
			UnitsOK:        10,
			UnitsPartial:   1,
		},
		MatrixPath:    "/out/matrix.bin",
		IndexPath:     "/out/matrix_index.json",
		N:             5000,
		NNZ:           98765,
		PairsDistinct: 45000,
		UnitsTotal:    11,
		Elapsed:       92 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "1,234,567")
	assert.Contains(t, out, "/out/matrix.bin")
	assert.Contains(t, out, "partial")
}

func TestWriteSummary_InterruptedRun(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	// No published outputs: the table renders, the path lines do not.
	scanner.WriteSummary(&buf, &scanner.Result{
		Stats: checkpoint.RunStats{
			RecordsTotal: 500,
			UnitsOK:      4,
		},
		N:             100,
		PairsDistinct: 42,
		UnitsTotal:    10,
		Elapsed:       3 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "500")
	assert.Contains(t, out, "Records streamed")
	assert.NotContains(t, out, "matrix:")
	assert.NotContains(t, out, "index:")
}
