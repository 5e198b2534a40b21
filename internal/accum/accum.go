// Package accum holds the sparse symmetric co-occurrence accumulator.
//
// Each record contributes one unit of pairwise mass, split evenly across its
// identifier pairs, plus one diagonal exposure per identifier. Only the
// upper triangle is stored; the diagonal lives in a dense slice since most
// identifiers are eventually exposed.
//
// Merging is commutative up to float summation order: concurrent runs may
// differ in the last bits of a weight. Consumers compare with tolerance.
package accum

import "sort"

// Pair is one canonical off-diagonal cell: Lo < Hi always.
type Pair struct {
	Lo int32
	Hi int32
}

// CanonicalPair orders two distinct rows into the stored form.
func CanonicalPair(a, b int32) Pair {
	if a < b {
		return Pair{Lo: a, Hi: b}
	}

	return Pair{Lo: b, Hi: a}
}

// PairWeight is one accumulated cell with its weight, used in snapshots.
type PairWeight struct {
	Pair   Pair
	Weight float64
}

// Snapshot is the serializable state of an accumulator. It round-trips
// through gob inside checkpoint state.
type Snapshot struct {
	N        int32
	Pairs    []PairWeight
	Diagonal []float64
}

// Accumulator collects pairwise weights and diagonal exposures for a fixed
// identifier space of n rows. It is not safe for concurrent use; workers
// accumulate into private instances and merge.
type Accumulator struct {
	n     int32
	pairs map[Pair]float64
	diag  []float64
}

// New creates an empty accumulator over n identifier rows.
func New(n int32) *Accumulator {
	return &Accumulator{
		n:     n,
		pairs: make(map[Pair]float64),
		diag:  make([]float64, n),
	}
}

// N returns the identifier space size.
func (a *Accumulator) N() int32 {
	return a.n
}

// AddRecord folds one record's exposure rows in. Every row gains one
// diagonal exposure; with k >= 2 rows, each of the k*(k-1)/2 pairs gains
// 1/(k*(k-1)/2) so the record contributes exactly one unit of pairwise
// mass. A single-row record contributes only its diagonal exposure.
func (a *Accumulator) AddRecord(rows []int32) {
	for _, row := range rows {
		a.diag[row]++
	}

	k := len(rows)
	if k < 2 {
		return
	}

	weight := 1.0 / float64(k*(k-1)/2)

	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			a.pairs[CanonicalPair(rows[i], rows[j])] += weight
		}
	}
}

// Merge folds other into a. Both accumulators must cover the same
// identifier space.
func (a *Accumulator) Merge(other *Accumulator) {
	for pair, weight := range other.pairs {
		a.pairs[pair] += weight
	}

	for row, weight := range other.diag {
		a.diag[row] += weight
	}
}

// PairCount returns the number of distinct off-diagonal cells touched.
func (a *Accumulator) PairCount() int {
	return len(a.pairs)
}

// PairWeight returns the accumulated weight for the (x, y) cell, in either
// row order. Zero means the pair never co-occurred.
func (a *Accumulator) PairWeight(x, y int32) float64 {
	if x == y {
		return a.diag[x]
	}

	return a.pairs[CanonicalPair(x, y)]
}

// Diagonal returns the exposure count for one row.
func (a *Accumulator) Diagonal(row int32) float64 {
	return a.diag[row]
}

// TotalPairWeight returns the sum of all off-diagonal weights. With exact
// arithmetic this equals the number of multi-identifier records folded in.
func (a *Accumulator) TotalPairWeight() float64 {
	var total float64
	for _, weight := range a.pairs {
		total += weight
	}

	return total
}

// TotalExposures returns the sum of the diagonal.
func (a *Accumulator) TotalExposures() float64 {
	var total float64
	for _, weight := range a.diag {
		total += weight
	}

	return total
}

// Snapshot extracts the full state in deterministic pair order, suitable
// for checkpointing.
func (a *Accumulator) Snapshot() *Snapshot {
	pairs := make([]PairWeight, 0, len(a.pairs))
	for pair, weight := range a.pairs {
		pairs = append(pairs, PairWeight{Pair: pair, Weight: weight})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Pair.Lo != pairs[j].Pair.Lo {
			return pairs[i].Pair.Lo < pairs[j].Pair.Lo
		}

		return pairs[i].Pair.Hi < pairs[j].Pair.Hi
	})

	diag := make([]float64, len(a.diag))
	copy(diag, a.diag)

	return &Snapshot{
		N:        a.n,
		Pairs:    pairs,
		Diagonal: diag,
	}
}

// Restore rebuilds an accumulator from a snapshot.
func Restore(snap *Snapshot) *Accumulator {
	a := New(snap.N)

	for _, pw := range snap.Pairs {
		a.pairs[pw.Pair] = pw.Weight
	}

	copy(a.diag, snap.Diagonal)

	return a
}

// Pairs iterates the accumulated cells in unspecified order. Iteration
// stops when fn returns false.
func (a *Accumulator) Pairs(fn func(pair Pair, weight float64) bool) {
	for pair, weight := range a.pairs {
		if !fn(pair, weight) {
			return
		}
	}
}
