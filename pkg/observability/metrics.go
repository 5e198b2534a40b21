package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRecordsTotal       = "coocscan.records.total"
	metricRecordsSkipped     = "coocscan.records.skipped"
	metricUnitsTotal         = "coocscan.units.total"
	metricUnitDuration       = "coocscan.unit.duration.seconds"
	metricCheckpointDuration = "coocscan.checkpoint.duration.seconds"
	metricPairsDistinct      = "coocscan.pairs.distinct"

	attrStatus = "status"
)

// unitDurationBuckets covers 100ms to 600s: units range from small archives
// decompressed in under a second to multi-minute gigabyte files.
var unitDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// checkpointDurationBuckets covers 10ms to 60s for checkpoint writes.
var checkpointDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// ScanMetrics holds the OTel instruments for the scan pipeline.
type ScanMetrics struct {
	recordsTotal       metric.Int64Counter
	recordsSkipped     metric.Int64Counter
	unitsTotal         metric.Int64Counter
	unitDuration       metric.Float64Histogram
	checkpointDuration metric.Float64Histogram
	pairsDistinct      metric.Int64UpDownCounter
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &ScanMetrics{
		recordsTotal:       b.counter(metricRecordsTotal, "Total records streamed from the corpus", "{record}"),
		recordsSkipped:     b.counter(metricRecordsSkipped, "Malformed records skipped", "{record}"),
		unitsTotal:         b.counter(metricUnitsTotal, "Units completed, by status", "{unit}"),
		unitDuration:       b.histogram(metricUnitDuration, "Unit processing duration in seconds", "s", unitDurationBuckets...),
		checkpointDuration: b.histogram(metricCheckpointDuration, "Checkpoint save duration in seconds", "s", checkpointDurationBuckets...),
		pairsDistinct:      b.upDownCounter(metricPairsDistinct, "Distinct pairs held by the accumulator", "{pair}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordUnit records a completed unit with its status and processing duration.
func (sm *ScanMetrics) RecordUnit(ctx context.Context, status string, records, skipped int64, duration time.Duration) {
	sm.recordsTotal.Add(ctx, records)
	sm.recordsSkipped.Add(ctx, skipped)
	sm.unitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	sm.unitDuration.Record(ctx, duration.Seconds())
}

// RecordCheckpoint records a checkpoint save duration.
func (sm *ScanMetrics) RecordCheckpoint(ctx context.Context, duration time.Duration) {
	sm.checkpointDuration.Record(ctx, duration.Seconds())
}

// RecordPairGrowth records the change in distinct pair count after a merge.
func (sm *ScanMetrics) RecordPairGrowth(ctx context.Context, delta int64) {
	sm.pairsDistinct.Add(ctx, delta)
}
