package clusterfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
// See metrics/prommetrics for a ready-made implementation.
type MetricsCollector interface {
	// RecordMount is called after each mount. formatted reports whether a new
	// filesystem was written.
	RecordMount(duration time.Duration, formatted bool, err error)

	// RecordCreate is called after each file creation.
	RecordCreate(duration time.Duration, err error)

	// RecordDelete is called after each file deletion.
	RecordDelete(duration time.Duration, err error)

	// RecordResize is called after each size change. delta is the change in
	// allocated clusters, negative when clusters were released.
	RecordResize(delta int, duration time.Duration, err error)

	// RecordRead is called after each file read with the bytes returned.
	RecordRead(bytes int, duration time.Duration, err error)

	// RecordWrite is called after each file write with the bytes written.
	RecordWrite(bytes int, duration time.Duration, err error)

	// RecordDefragment is called after each reclamation pass with the number
	// of clusters freed.
	RecordDefragment(freed int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMount(time.Duration, bool, error)     {}
func (NoopMetricsCollector) RecordCreate(time.Duration, error)          {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)          {}
func (NoopMetricsCollector) RecordResize(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordRead(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordWrite(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordDefragment(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MountCount        atomic.Int64
	FormatCount       atomic.Int64
	MountErrors       atomic.Int64
	CreateCount       atomic.Int64
	CreateErrors      atomic.Int64
	DeleteCount       atomic.Int64
	DeleteErrors      atomic.Int64
	ResizeCount       atomic.Int64
	ResizeErrors      atomic.Int64
	ClustersGrown     atomic.Int64
	ClustersShrunk    atomic.Int64
	ReadCount         atomic.Int64
	ReadBytes         atomic.Int64
	ReadErrors        atomic.Int64
	ReadTotalNanos    atomic.Int64
	WriteCount        atomic.Int64
	WriteBytes        atomic.Int64
	WriteErrors       atomic.Int64
	WriteTotalNanos   atomic.Int64
	DefragmentCount   atomic.Int64
	ClustersReclaimed atomic.Int64
}

// RecordMount implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMount(_ time.Duration, formatted bool, err error) {
	b.MountCount.Add(1)
	if err != nil {
		b.MountErrors.Add(1)
		return
	}
	if formatted {
		b.FormatCount.Add(1)
	}
}

// RecordCreate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCreate(_ time.Duration, err error) {
	b.CreateCount.Add(1)
	if err != nil {
		b.CreateErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordResize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResize(delta int, _ time.Duration, err error) {
	b.ResizeCount.Add(1)
	if err != nil {
		b.ResizeErrors.Add(1)
		return
	}
	if delta > 0 {
		b.ClustersGrown.Add(int64(delta))
	} else {
		b.ClustersShrunk.Add(int64(-delta))
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadBytes.Add(int64(bytes))
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(bytes int, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteBytes.Add(int64(bytes))
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordDefragment implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDefragment(freed int, _ time.Duration, err error) {
	b.DefragmentCount.Add(1)
	if err == nil {
		b.ClustersReclaimed.Add(int64(freed))
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MountCount:        b.MountCount.Load(),
		FormatCount:       b.FormatCount.Load(),
		MountErrors:       b.MountErrors.Load(),
		CreateCount:       b.CreateCount.Load(),
		CreateErrors:      b.CreateErrors.Load(),
		DeleteCount:       b.DeleteCount.Load(),
		DeleteErrors:      b.DeleteErrors.Load(),
		ResizeCount:       b.ResizeCount.Load(),
		ResizeErrors:      b.ResizeErrors.Load(),
		ClustersGrown:     b.ClustersGrown.Load(),
		ClustersShrunk:    b.ClustersShrunk.Load(),
		ReadCount:         b.ReadCount.Load(),
		ReadBytes:         b.ReadBytes.Load(),
		ReadErrors:        b.ReadErrors.Load(),
		ReadAvgNanos:      avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		WriteCount:        b.WriteCount.Load(),
		WriteBytes:        b.WriteBytes.Load(),
		WriteErrors:       b.WriteErrors.Load(),
		WriteAvgNanos:     avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		DefragmentCount:   b.DefragmentCount.Load(),
		ClustersReclaimed: b.ClustersReclaimed.Load(),
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
	MountCount        int64
	FormatCount       int64
	MountErrors       int64
	CreateCount       int64
	CreateErrors      int64
	DeleteCount       int64
	DeleteErrors      int64
	ResizeCount       int64
	ResizeErrors      int64
	ClustersGrown     int64
	ClustersShrunk    int64
	ReadCount         int64
	ReadBytes         int64
	ReadErrors        int64
	ReadAvgNanos      int64
	WriteCount        int64
	WriteBytes        int64
	WriteErrors       int64
	WriteAvgNanos     int64
	DefragmentCount   int64
	ClustersReclaimed int64
}
