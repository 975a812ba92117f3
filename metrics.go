package direkte

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuery(bitmaps int, duration time.Duration) {
//	    p.queryHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordBuild is called after an index is built from column values.
	RecordBuild(nrows uint32, duration time.Duration, err error)

	// RecordQuery is called after a range or set predicate is evaluated.
	// bitmaps is the number of bitmaps that were OR-ed.
	RecordQuery(bitmaps int, duration time.Duration)

	// RecordWrite is called after an index file is written.
	RecordWrite(bytes int64, duration time.Duration, err error)

	// RecordAppend is called after rows are appended to an index.
	RecordAppend(rows uint32, duration time.Duration, err error)

	// RecordActivation is called for each bitmap decoded from an index file.
	RecordActivation(bytes int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(uint32, time.Duration, error)  {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration)            {}
func (NoopMetricsCollector) RecordWrite(int64, time.Duration, error)   {}
func (NoopMetricsCollector) RecordAppend(uint32, time.Duration, error) {}
func (NoopMetricsCollector) RecordActivation(int, error)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildRows        atomic.Int64
	BuildTotalNanos  atomic.Int64
	QueryCount       atomic.Int64
	QueryBitmaps     atomic.Int64
	QueryTotalNanos  atomic.Int64
	WriteCount       atomic.Int64
	WriteErrors      atomic.Int64
	WriteBytes       atomic.Int64
	AppendCount      atomic.Int64
	AppendErrors     atomic.Int64
	AppendRows       atomic.Int64
	Activations      atomic.Int64
	ActivationErrors atomic.Int64
	ActivatedBytes   atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(nrows uint32, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildRows.Add(int64(nrows))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(bitmaps int, duration time.Duration) {
	b.QueryCount.Add(1)
	b.QueryBitmaps.Add(int64(bitmaps))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int64, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	if err != nil {
		b.WriteErrors.Add(1)
		return
	}
	b.WriteBytes.Add(bytes)
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(rows uint32, duration time.Duration, err error) {
	b.AppendCount.Add(1)
	if err != nil {
		b.AppendErrors.Add(1)
		return
	}
	b.AppendRows.Add(int64(rows))
}

// RecordActivation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordActivation(bytes int, err error) {
	b.Activations.Add(1)
	if err != nil {
		b.ActivationErrors.Add(1)
		return
	}
	b.ActivatedBytes.Add(int64(bytes))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:       b.BuildCount.Load(),
		BuildErrors:      b.BuildErrors.Load(),
		BuildRows:        b.BuildRows.Load(),
		BuildAvgNanos:    avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		QueryCount:       b.QueryCount.Load(),
		QueryBitmaps:     b.QueryBitmaps.Load(),
		QueryAvgNanos:    avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		WriteCount:       b.WriteCount.Load(),
		WriteErrors:      b.WriteErrors.Load(),
		WriteBytes:       b.WriteBytes.Load(),
		AppendCount:      b.AppendCount.Load(),
		AppendErrors:     b.AppendErrors.Load(),
		AppendRows:       b.AppendRows.Load(),
		Activations:      b.Activations.Load(),
		ActivationErrors: b.ActivationErrors.Load(),
		ActivatedBytes:   b.ActivatedBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount       int64
	BuildErrors      int64
	BuildRows        int64
	BuildAvgNanos    int64
	QueryCount       int64
	QueryBitmaps     int64
	QueryAvgNanos    int64
	WriteCount       int64
	WriteErrors      int64
	WriteBytes       int64
	AppendCount      int64
	AppendErrors     int64
	AppendRows       int64
	Activations      int64
	ActivationErrors int64
	ActivatedBytes   int64
}
