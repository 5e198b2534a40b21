// Package checkpoint persists scan progress so an interrupted run resumes
// without repeating completed units.
//
// A checkpoint is one atomic blob: the completed-unit set and the
// accumulator snapshot are always written together, so a resumed run never
// sees progress without the weights that produced it.
package checkpoint

import (
	"time"

	"github.com/graphmine/coocscan/internal/accum"
)

// SchemaVersion is the checkpoint layout version. A state written by a
// different version is refused rather than reinterpreted.
const SchemaVersion = 1

// Unit completion statuses.
const (
	// StatusOK means the unit decoded fully.
	StatusOK = "ok"

	// StatusPartial means the compressed stream ended abnormally; records
	// before the corruption point were folded in and the unit will not be
	// revisited.
	StatusPartial = "partial"

	// StatusFailed means the unit could not be opened at all.
	StatusFailed = "failed"
)

// UnitResult records the outcome of one processed unit.
type UnitResult struct {
	Status    string
	Records   int64
	Skipped   int64
	Matched   int64
	ElapsedMS int64
}

// RunStats aggregates counters across the whole run, surviving resume.
type RunStats struct {
	RecordsTotal   int64
	RecordsSkipped int64
	RecordsMatched int64
	UnitsOK        int64
	UnitsPartial   int64
	UnitsFailed    int64
	StartedAt      time.Time
	SavedAt        time.Time
}

// State is the full checkpoint payload, serialized as one gob blob.
type State struct {
	Version     int
	Threshold   float64
	IndexSize   int32
	Units       map[string]UnitResult
	Stats       RunStats
	Accumulator *accum.Snapshot
}

// NewState creates an empty state for a fresh run.
func NewState(threshold float64, indexSize int32) *State {
	return &State{
		Version:   SchemaVersion,
		Threshold: threshold,
		IndexSize: indexSize,
		Units:     make(map[string]UnitResult),
		Stats:     RunStats{StartedAt: time.Now().UTC()},
	}
}

// Completed reports whether the unit was already processed, regardless of
// its outcome. Partial and failed units are not retried.
func (s *State) Completed(unit string) bool {
	_, ok := s.Units[unit]

	return ok
}

// RecordUnit marks one unit done and folds its counters into the run stats.
func (s *State) RecordUnit(unit string, result UnitResult) {
	s.Units[unit] = result

	s.Stats.RecordsTotal += result.Records
	s.Stats.RecordsSkipped += result.Skipped
	s.Stats.RecordsMatched += result.Matched

	switch result.Status {
	case StatusOK:
		s.Stats.UnitsOK++
	case StatusPartial:
		s.Stats.UnitsPartial++
	case StatusFailed:
		s.Stats.UnitsFailed++
	}
}
