package concept_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmine/coocscan/internal/concept"
	"github.com/graphmine/coocscan/internal/corpus"
)

// testThreshold is the confidence cutoff used across extractor tests.
const testThreshold = 0.3

func newTestIndex(t *testing.T) *concept.Index {
	t.Helper()

	path := writeIndexFile(t, `{"concepts":[
		{"id":"A"},{"id":"B"},{"id":"C"},{"id":"D"}
	]}`)

	idx, err := concept.LoadIndex(path, "")
	require.NoError(t, err)

	return idx
}

func TestExtract_SortedDedupedRows(t *testing.T) {
	t.Parallel()

	ex := concept.NewExtractor(newTestIndex(t), testThreshold)

	rows := ex.Extract(&corpus.Record{
		ID: "r1",
		Concepts: []corpus.Annotation{
			{ID: "C", Score: 0.9},
			{ID: "A", Score: 0.5},
			{ID: "B", Score: 0.7},
		},
	})

	assert.Equal(t, []int32{0, 1, 2}, rows)
}

func TestExtract_DuplicateKeepsHighestScore(t *testing.T) {
	t.Parallel()

	ex := concept.NewExtractor(newTestIndex(t), testThreshold)

	// "A" appears twice; the higher score clears the threshold, so the
	// identifier counts once.
	rows := ex.Extract(&corpus.Record{
		Concepts: []corpus.Annotation{
			{ID: "A", Score: 0.1},
			{ID: "A", Score: 0.8},
		},
	})

	assert.Equal(t, []int32{0}, rows)
}

func TestExtract_ThresholdFilters(t *testing.T) {
	t.Parallel()

	ex := concept.NewExtractor(newTestIndex(t), testThreshold)

	rows := ex.Extract(&corpus.Record{
		Concepts: []corpus.Annotation{
			{ID: "A", Score: 0.29},
			{ID: "B", Score: 0.3},
		},
	})

	// The cutoff is inclusive.
	assert.Equal(t, []int32{1}, rows)
}

func TestExtract_UnknownIdentifiersDropped(t *testing.T) {
	t.Parallel()

	ex := concept.NewExtractor(newTestIndex(t), testThreshold)

	rows := ex.Extract(&corpus.Record{
		Concepts: []corpus.Annotation{
			{ID: "Z", Score: 0.9},
			{ID: "B", Score: 0.9},
		},
	})

	assert.Equal(t, []int32{1}, rows)
}

func TestExtract_RetractedRecord(t *testing.T) {
	t.Parallel()

	ex := concept.NewExtractor(newTestIndex(t), testThreshold)

	rows := ex.Extract(&corpus.Record{
		Retracted: true,
		Concepts:  []corpus.Annotation{{ID: "A", Score: 0.9}},
	})

	assert.Nil(t, rows)
}

func TestExtract_EmptyCases(t *testing.T) {
	t.Parallel()

	ex := concept.NewExtractor(newTestIndex(t), testThreshold)

	assert.Nil(t, ex.Extract(nil))
	assert.Nil(t, ex.Extract(&corpus.Record{}))
	assert.Nil(t, ex.Extract(&corpus.Record{
		Concepts: []corpus.Annotation{{ID: "A", Score: 0.1}},
	}))
}
