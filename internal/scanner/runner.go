package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphmine/coocscan/internal/accum"
	"github.com/graphmine/coocscan/internal/checkpoint"
	"github.com/graphmine/coocscan/internal/concept"
	"github.com/graphmine/coocscan/internal/corpus"
	"github.com/graphmine/coocscan/internal/matrix"
	"github.com/graphmine/coocscan/pkg/observability"
)

// Output file names inside the output directory.
const (
	MatrixFileName = "matrix.bin"
	IndexFileName  = "matrix_index.json"
)

// ErrInterrupted indicates a scan stopped by cancellation. Progress up to
// the last completed units is checkpointed before this is returned.
var ErrInterrupted = errors.New("scan interrupted")

// Options configure one scan run.
type Options struct {
	Root         string
	IndexPath    string
	UniversePath string
	Threshold    float64
	Workers      int
	Limit        int
	Cadence      int
	Resume       bool
	OutputDir    string
}

// Result summarizes a finished scan.
type Result struct {
	Stats         checkpoint.RunStats
	MatrixPath    string
	IndexPath     string
	N             int32
	NNZ           int64
	PairsDistinct int
	UnitsTotal    int
	UnitsResumed  int
	Elapsed       time.Duration
}

// unitOutcome carries one processed unit back to the aggregator.
type unitOutcome struct {
	unit   string
	delta  *accum.Accumulator
	result checkpoint.UnitResult
}

// Runner executes the scan pipeline.
type Runner struct {
	opts    Options
	logger  *slog.Logger
	metrics *observability.ScanMetrics
}

// NewRunner wires a runner. metrics may be nil when telemetry is disabled.
func NewRunner(opts Options, logger *slog.Logger, metrics *observability.ScanMetrics) *Runner {
	return &Runner{
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes the scan to completion or cancellation. On success the
// matrix and index files are in place and the checkpoint is gone; on
// cancellation the checkpoint holds every completed unit and Run returns
// ErrInterrupted together with a partial Result carrying the progress
// statistics gathered so far (no output paths, nothing was published).
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	lock, err := AcquireLock(r.opts.OutputDir)
	if err != nil {
		return nil, err
	}

	defer func() { _ = lock.Release() }()

	idx, err := concept.LoadIndex(r.opts.IndexPath, r.opts.UniversePath)
	if err != nil {
		return nil, err
	}

	units, err := Discover(r.opts.Root)
	if err != nil {
		return nil, err
	}

	truncated := r.opts.Limit > 0 && len(units) > r.opts.Limit
	if truncated {
		units = units[:r.opts.Limit]
	}

	mgr := checkpoint.NewManager(r.opts.OutputDir)

	state, master, err := r.restore(mgr, idx)
	if err != nil {
		return nil, err
	}

	pending := Pending(units, state.Completed)
	resumed := len(units) - len(pending)

	r.logger.InfoContext(ctx, "scan starting",
		"units", len(units),
		"resumed", resumed,
		"identifiers", idx.Size(),
		"workers", r.workers(),
		"threshold", r.opts.Threshold)

	extractor := concept.NewExtractor(idx, r.opts.Threshold)

	runErr := r.processUnits(ctx, pending, extractor, master, state, mgr)
	if runErr != nil {
		saveErr := r.save(ctx, mgr, state, master)
		if saveErr != nil {
			r.logger.ErrorContext(ctx, "checkpoint save on shutdown failed", "error", saveErr)
		}

		return &Result{
			Stats:         state.Stats,
			N:             master.N(),
			PairsDistinct: master.PairCount(),
			UnitsTotal:    len(units),
			UnitsResumed:  resumed,
			Elapsed:       time.Since(start),
		}, runErr
	}

	return r.finish(ctx, mgr, state, master, idx, len(units), resumed, truncated, start)
}

// restore loads or initializes run state. A checkpoint left behind with
// resume disabled is stale and removed.
func (r *Runner) restore(mgr *checkpoint.Manager, idx *concept.Index) (*checkpoint.State, *accum.Accumulator, error) {
	n := int32(idx.Size())

	if !r.opts.Resume {
		err := mgr.Discard()
		if err != nil {
			return nil, nil, err
		}

		return checkpoint.NewState(r.opts.Threshold, n), accum.New(n), nil
	}

	state, err := mgr.Load(r.opts.Threshold, n)
	if err != nil {
		return nil, nil, err
	}

	if state == nil {
		r.logger.Warn("resume requested but no checkpoint found, starting fresh",
			"path", mgr.Path())

		return checkpoint.NewState(r.opts.Threshold, n), accum.New(n), nil
	}

	return state, accum.Restore(state.Accumulator), nil
}

// processUnits fans pending units out to workers and folds outcomes into
// the master accumulator, checkpointing every cadence units.
func (r *Runner) processUnits(
	ctx context.Context,
	pending []string,
	extractor *concept.Extractor,
	master *accum.Accumulator,
	state *checkpoint.State,
	mgr *checkpoint.Manager,
) error {
	unitCh := make(chan string)
	outcomes := make(chan unitOutcome)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(unitCh)

		for _, unit := range pending {
			select {
			case unitCh <- unit:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		}

		return nil
	})

	for i := 0; i < r.workers(); i++ {
		group.Go(func() error {
			for unit := range unitCh {
				outcomes <- r.processUnit(groupCtx, unit, extractor, master.N())
			}

			return nil
		})
	}

	done := make(chan error, 1)

	go func() {
		done <- group.Wait()
		close(outcomes)
	}()

	sinceSave := 0

	for outcome := range outcomes {
		before := master.PairCount()
		master.Merge(outcome.delta)
		state.RecordUnit(outcome.unit, outcome.result)

		if r.metrics != nil {
			r.metrics.RecordUnit(ctx, outcome.result.Status,
				outcome.result.Records, outcome.result.Skipped,
				time.Duration(outcome.result.ElapsedMS)*time.Millisecond)
			r.metrics.RecordPairGrowth(ctx, int64(master.PairCount()-before))
		}

		sinceSave++
		if sinceSave >= r.cadence() {
			// A failed save keeps the prior checkpoint on disk; retried at
			// the next cadence boundary.
			err := r.save(ctx, mgr, state, master)
			if err != nil {
				r.logger.ErrorContext(ctx, "checkpoint save failed, keeping prior checkpoint",
					"error", err)
			}

			sinceSave = 0
		}
	}

	err := <-done
	if err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		return fmt.Errorf("process units: %w", err)
	}

	return nil
}

// processUnit streams one unit into a private accumulator. Unit failures
// do not abort the scan; they are recorded and the unit is never retried.
func (r *Runner) processUnit(ctx context.Context, unit string, extractor *concept.Extractor, n int32) unitOutcome {
	started := time.Now()
	delta := accum.New(n)

	path := filepath.Join(r.opts.Root, filepath.FromSlash(unit))

	reader, err := corpus.Open(path)
	if err != nil {
		r.logger.WarnContext(ctx, "unit unreadable", "unit", unit, "error", err)

		return unitOutcome{
			unit:  unit,
			delta: delta,
			result: checkpoint.UnitResult{
				Status:    checkpoint.StatusFailed,
				ElapsedMS: time.Since(started).Milliseconds(),
			},
		}
	}

	defer func() { _ = reader.Close() }()

	var matched int64

	for {
		rec, ok := reader.Next()
		if !ok {
			break
		}

		rows := extractor.Extract(rec)
		if len(rows) == 0 {
			continue
		}

		matched++

		delta.AddRecord(rows)
	}

	status := checkpoint.StatusOK
	if reader.Partial() {
		status = checkpoint.StatusPartial

		r.logger.WarnContext(ctx, "unit truncated, kept partial content",
			"unit", unit, "records", reader.Records())
	}

	return unitOutcome{
		unit:  unit,
		delta: delta,
		result: checkpoint.UnitResult{
			Status:    status,
			Records:   reader.Records(),
			Skipped:   reader.Malformed(),
			Matched:   matched,
			ElapsedMS: time.Since(started).Milliseconds(),
		},
	}
}

// save snapshots the accumulator into the state and writes the checkpoint
// atomically.
func (r *Runner) save(ctx context.Context, mgr *checkpoint.Manager, state *checkpoint.State, master *accum.Accumulator) error {
	started := time.Now()

	state.Accumulator = master.Snapshot()

	err := mgr.Save(state)
	if err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.RecordCheckpoint(ctx, time.Since(started))
	}

	r.logger.DebugContext(ctx, "checkpoint saved",
		"units", len(state.Units),
		"pairs", master.PairCount(),
		"elapsed", time.Since(started))

	return nil
}

// finish assembles and publishes the outputs, then retires the checkpoint.
func (r *Runner) finish(
	ctx context.Context,
	mgr *checkpoint.Manager,
	state *checkpoint.State,
	master *accum.Accumulator,
	idx *concept.Index,
	unitsTotal, resumed int,
	truncated bool,
	start time.Time,
) (*Result, error) {
	m := matrix.Assemble(master)

	// Nothing is published unless the assembled matrix is internally sound.
	err := m.Verify()
	if err != nil {
		return nil, err
	}

	matrixPath := filepath.Join(r.opts.OutputDir, MatrixFileName)

	err = m.Write(matrixPath)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(r.opts.OutputDir, IndexFileName)
	sidecar := matrix.BuildIndexFile(m, idx, state.Stats, r.opts.Threshold)

	err = matrix.WriteIndexFile(indexPath, sidecar)
	if err != nil {
		return nil, err
	}

	// Outputs are durable. A full-coverage run retires the checkpoint; a
	// limit-truncated run keeps it so the remaining units resume later.
	if truncated {
		err = r.save(ctx, mgr, state, master)
	} else {
		err = mgr.Discard()
	}

	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)

	r.logger.InfoContext(ctx, "scan finished",
		"units", unitsTotal,
		"records", state.Stats.RecordsTotal,
		"pairs", master.PairCount(),
		"nnz", m.NNZ(),
		"elapsed", elapsed)

	return &Result{
		Stats:         state.Stats,
		MatrixPath:    matrixPath,
		IndexPath:     indexPath,
		N:             m.N,
		NNZ:           m.NNZ(),
		PairsDistinct: master.PairCount(),
		UnitsTotal:    unitsTotal,
		UnitsResumed:  resumed,
		Elapsed:       elapsed,
	}, nil
}

func (r *Runner) workers() int {
	if r.opts.Workers > 0 {
		return r.opts.Workers
	}

	return runtime.NumCPU()
}

func (r *Runner) cadence() int {
	if r.opts.Cadence > 0 {
		return r.opts.Cadence
	}

	return 50
}
