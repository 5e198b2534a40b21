package matrix

import "sort"

// Hole is a pair of well-exposed identifiers whose observed co-occurrence
// falls far below what their individual exposures predict.
type Hole struct {
	RowA     int32
	RowB     int32
	Observed float64
	Expected float64
	Ratio    float64
}

// HoleParams tune hole detection.
type HoleParams struct {
	// MaxRatio is the observed/expected cutoff: pairs at or above it are
	// not holes.
	MaxRatio float64

	// MinDiagonal is the exposure floor; both identifiers must clear it.
	// Rarely-seen identifiers produce noise, not holes.
	MinDiagonal float64

	// Limit caps the number of reported holes. Zero means no cap.
	Limit int
}

// Holes scans identifier pairs for unexpectedly absent co-occurrence. The
// expected weight of a pair is totalPairWeight * pA * pB, where pX is the
// identifier's share of total exposures. Results are sorted by ascending
// ratio, the starkest holes first.
func (m *CSR) Holes(params HoleParams) []Hole {
	diag := make([]float64, m.N)

	var totalExposure, totalPairWeight float64

	for row := int32(0); row < m.N; row++ {
		diag[row] = m.At(row, row)
		totalExposure += diag[row]
		totalPairWeight += m.RowWeight(row)
	}

	// Each off-diagonal cell is stored twice.
	totalPairWeight /= 2

	if totalExposure == 0 || totalPairWeight == 0 {
		return nil
	}

	var holes []Hole

	for rowA := int32(0); rowA < m.N; rowA++ {
		if diag[rowA] < params.MinDiagonal {
			continue
		}

		pA := diag[rowA] / totalExposure

		for rowB := rowA + 1; rowB < m.N; rowB++ {
			if diag[rowB] < params.MinDiagonal {
				continue
			}

			expected := totalPairWeight * pA * (diag[rowB] / totalExposure)
			if expected == 0 {
				continue
			}

			observed := m.At(rowA, rowB)

			ratio := observed / expected
			if ratio >= params.MaxRatio {
				continue
			}

			holes = append(holes, Hole{
				RowA:     rowA,
				RowB:     rowB,
				Observed: observed,
				Expected: expected,
				Ratio:    ratio,
			})
		}
	}

	sort.Slice(holes, func(i, j int) bool { return holes[i].Ratio < holes[j].Ratio })

	if params.Limit > 0 && len(holes) > params.Limit {
		holes = holes[:params.Limit]
	}

	return holes
}
