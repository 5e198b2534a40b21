// Package matrix assembles the final co-occurrence matrix and its sidecar
// index from a finished accumulator.
//
// The matrix is stored in compressed sparse row form with both triangles
// materialized, so consumers can walk any identifier's row without knowing
// the triangular storage convention.
package matrix

import (
	"errors"
	"fmt"
	"sort"

	"github.com/graphmine/coocscan/internal/accum"
)

// Sentinel errors for matrix verification.
var (
	// ErrAsymmetric indicates a CSR matrix whose triangles disagree.
	ErrAsymmetric = errors.New("matrix is not symmetric")

	// ErrNegativeValue indicates a stored weight below zero. Accumulated
	// weights only ever grow, so a negative value means corruption.
	ErrNegativeValue = errors.New("matrix holds a negative value")
)

// CSR is a sparse symmetric matrix in compressed sparse row form. Column
// indices are sorted ascending within each row.
type CSR struct {
	N      int32
	RowPtr []int64
	ColInd []int32
	Values []float64
}

// cell is a scratch entry used during assembly.
type cell struct {
	col    int32
	weight float64
}

// Assemble builds the full symmetric CSR from an accumulator: each stored
// off-diagonal pair is emitted into both rows, and every nonzero diagonal
// exposure becomes an explicit (i, i) entry.
func Assemble(a *accum.Accumulator) *CSR {
	n := a.N()
	rows := make([][]cell, n)

	for row := int32(0); row < n; row++ {
		d := a.Diagonal(row)
		if d != 0 {
			rows[row] = append(rows[row], cell{col: row, weight: d})
		}
	}

	a.Pairs(func(pair accum.Pair, weight float64) bool {
		rows[pair.Lo] = append(rows[pair.Lo], cell{col: pair.Hi, weight: weight})
		rows[pair.Hi] = append(rows[pair.Hi], cell{col: pair.Lo, weight: weight})

		return true
	})

	nnz := 0
	for _, cells := range rows {
		nnz += len(cells)
	}

	csr := &CSR{
		N:      n,
		RowPtr: make([]int64, n+1),
		ColInd: make([]int32, 0, nnz),
		Values: make([]float64, 0, nnz),
	}

	for row := int32(0); row < n; row++ {
		cells := rows[row]
		sort.Slice(cells, func(i, j int) bool { return cells[i].col < cells[j].col })

		for _, c := range cells {
			csr.ColInd = append(csr.ColInd, c.col)
			csr.Values = append(csr.Values, c.weight)
		}

		csr.RowPtr[row+1] = int64(len(csr.ColInd))
	}

	return csr
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int64 {
	return m.RowPtr[m.N]
}

// Density returns the stored-entry fraction of the full N x N matrix.
func (m *CSR) Density() float64 {
	if m.N == 0 {
		return 0
	}

	return float64(m.NNZ()) / (float64(m.N) * float64(m.N))
}

// At returns the (row, col) value, zero when the cell is not stored.
// Lookup is a binary search within the row.
func (m *CSR) At(row, col int32) float64 {
	lo, hi := m.RowPtr[row], m.RowPtr[row+1]

	cols := m.ColInd[lo:hi]
	pos := sort.Search(len(cols), func(i int) bool { return cols[i] >= col })

	if pos < len(cols) && cols[pos] == col {
		return m.Values[lo+int64(pos)]
	}

	return 0
}

// Row returns the stored column indices and values for one row. The slices
// alias the matrix storage and must not be mutated.
func (m *CSR) Row(row int32) ([]int32, []float64) {
	lo, hi := m.RowPtr[row], m.RowPtr[row+1]

	return m.ColInd[lo:hi], m.Values[lo:hi]
}

// Degree returns the number of distinct co-occurring identifiers for a row,
// excluding the diagonal entry.
func (m *CSR) Degree(row int32) int {
	cols, _ := m.Row(row)

	degree := len(cols)
	for _, col := range cols {
		if col == row {
			degree--

			break
		}
	}

	return degree
}

// RowWeight returns the summed off-diagonal weight of one row.
func (m *CSR) RowWeight(row int32) float64 {
	cols, vals := m.Row(row)

	var total float64

	for i, col := range cols {
		if col == row {
			continue
		}

		total += vals[i]
	}

	return total
}

// Verify runs the pre-publication checks: non-negative values and exact
// structural symmetry. A matrix failing either must not be written.
func (m *CSR) Verify() error {
	for i, v := range m.Values {
		if v < 0 {
			return fmt.Errorf("%w: entry %d = %g", ErrNegativeValue, i, v)
		}
	}

	return m.VerifySymmetric()
}

// VerifySymmetric checks that every stored (i, j) has a matching (j, i)
// with the same value. Assemble produces symmetric output by construction;
// this guards matrices read back from disk.
func (m *CSR) VerifySymmetric() error {
	for row := int32(0); row < m.N; row++ {
		cols, vals := m.Row(row)

		for i, col := range cols {
			if col == row {
				continue
			}

			mirror := m.At(col, row)
			if mirror != vals[i] {
				return fmt.Errorf("%w: (%d,%d)=%g but (%d,%d)=%g",
					ErrAsymmetric, row, col, vals[i], col, row, mirror)
			}
		}
	}

	return nil
}
