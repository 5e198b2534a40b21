package concept

import (
	"sort"

	"github.com/graphmine/coocscan/internal/corpus"
)

// DefaultThreshold is the minimum confidence score an annotation needs to
// count as an exposure.
const DefaultThreshold = 0.3

// Extractor turns raw records into sorted, deduplicated row sets against a
// frozen index. It is stateless apart from the mapping and threshold and is
// safe for concurrent use.
type Extractor struct {
	index     *Index
	threshold float64
}

// NewExtractor binds an extractor to a frozen index. Annotations scoring
// below threshold are dropped.
func NewExtractor(index *Index, threshold float64) *Extractor {
	return &Extractor{
		index:     index,
		threshold: threshold,
	}
}

// Extract returns the record's exposure rows: annotations deduplicated by
// identifier (keeping the highest score), filtered by threshold and index
// membership, mapped to rows and sorted ascending. Retracted records yield
// nil regardless of their annotations.
func (e *Extractor) Extract(rec *corpus.Record) []int32 {
	if rec == nil || rec.Retracted || len(rec.Concepts) == 0 {
		return nil
	}

	best := make(map[string]float64, len(rec.Concepts))

	for _, ann := range rec.Concepts {
		if ann.ID == "" {
			continue
		}

		score, seen := best[ann.ID]
		if !seen || ann.Score > score {
			best[ann.ID] = ann.Score
		}
	}

	rows := make([]int32, 0, len(best))

	for id, score := range best {
		if score < e.threshold {
			continue
		}

		row, err := e.index.Row(id)
		if err != nil {
			continue
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })

	return rows
}
