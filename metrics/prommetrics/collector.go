// Package prommetrics exports clusterfs metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	fsys, err := clusterfs.Mount(store, clusterfs.WithMetricsCollector(prommetrics.NewCollector(reg)))
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/clusterfs"
)

const namespace = "clusterfs"

// Collector implements clusterfs.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	clusters  *prometheus.CounterVec
	formats   prometheus.Counter

	usageClusters *prometheus.GaugeVec
	usageSlots    *prometheus.GaugeVec
}

var _ clusterfs.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of filesystem operations",
			Buckets:   prometheus.ExponentialBuckets(10e-6, 4, 10),
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total filesystem operations",
		}, []string{"op", "status"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_bytes_total",
			Help:      "Bytes read from and written to files",
		}, []string{"direction"}),
		clusters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clusters_total",
			Help:      "Clusters allocated, released and reclaimed",
		}, []string{"event"}),
		formats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formats_total",
			Help:      "Mounts that wrote a new filesystem",
		}),
		usageClusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Data clusters by state",
		}, []string{"state"}),
		usageSlots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "directory_slots",
			Help:      "Directory slots by state",
		}, []string{"state"}),
	}

	reg.MustRegister(c.opLatency, c.ops, c.bytes, c.clusters, c.formats, c.usageClusters, c.usageSlots)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordMount implements clusterfs.MetricsCollector.
func (c *Collector) RecordMount(d time.Duration, formatted bool, err error) {
	c.observe("mount", d, err)
	if formatted && err == nil {
		c.formats.Inc()
	}
}

// RecordCreate implements clusterfs.MetricsCollector.
func (c *Collector) RecordCreate(d time.Duration, err error) {
	c.observe("create", d, err)
}

// RecordDelete implements clusterfs.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.observe("delete", d, err)
}

// RecordResize implements clusterfs.MetricsCollector.
func (c *Collector) RecordResize(delta int, d time.Duration, err error) {
	c.observe("resize", d, err)
	switch {
	case delta > 0:
		c.clusters.WithLabelValues("allocated").Add(float64(delta))
	case delta < 0:
		c.clusters.WithLabelValues("released").Add(float64(-delta))
	}
}

// RecordRead implements clusterfs.MetricsCollector.
func (c *Collector) RecordRead(n int, d time.Duration, err error) {
	c.observe("read", d, err)
	c.bytes.WithLabelValues("read").Add(float64(n))
}

// RecordWrite implements clusterfs.MetricsCollector.
func (c *Collector) RecordWrite(n int, d time.Duration, err error) {
	c.observe("write", d, err)
	c.bytes.WithLabelValues("write").Add(float64(n))
}

// RecordDefragment implements clusterfs.MetricsCollector.
func (c *Collector) RecordDefragment(freed int, d time.Duration, err error) {
	c.observe("defragment", d, err)
	c.clusters.WithLabelValues("reclaimed").Add(float64(freed))
}

// ObserveUsage publishes the occupancy of a volume as gauges.
func (c *Collector) ObserveUsage(u clusterfs.Usage) {
	c.usageClusters.WithLabelValues("used").Set(float64(u.UsedClusters))
	c.usageClusters.WithLabelValues("free").Set(float64(u.FreeClusters))
	c.usageClusters.WithLabelValues("reserved").Set(float64(u.ReservedClusters))
	c.usageSlots.WithLabelValues("used").Set(float64(u.UsedSlots))
	c.usageSlots.WithLabelValues("free").Set(float64(u.DirectorySlots - u.UsedSlots))
}
