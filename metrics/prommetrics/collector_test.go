package prommetrics

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/clusterfs"
	"github.com/hupe1980/clusterfs/blockdev"
)

func TestCollector_Filesystem(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	fsys, err := clusterfs.Mount(blockdev.NewMemoryStore(25), clusterfs.WithMetricsCollector(c))
	require.NoError(t, err)

	f, err := fsys.OpenFile("a")
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 1500))
	require.NoError(t, err)
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Read(make([]byte, 1500))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(0))
	require.NoError(t, f.Close())
	require.NoError(t, fsys.Remove("a"))
	assert.Error(t, fsys.Remove("missing"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.formats))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("mount", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("delete", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("delete", "error")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(c.bytes.WithLabelValues("write")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(c.bytes.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.clusters.WithLabelValues("allocated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.clusters.WithLabelValues("released")))

	c.ObserveUsage(fsys.Usage())
	assert.Equal(t, 0.0, testutil.ToFloat64(c.usageClusters.WithLabelValues("used")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.usageClusters.WithLabelValues("free")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.usageClusters.WithLabelValues("reserved")))
	assert.Equal(t, 32.0, testutil.ToFloat64(c.usageSlots.WithLabelValues("free")))
}

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMount(time.Millisecond, true, errors.New("boom"))
	c.RecordDefragment(4, time.Millisecond, nil)
	c.RecordResize(0, time.Millisecond, nil)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.formats))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("mount", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.clusters.WithLabelValues("reclaimed")))
	assert.Equal(t, 3, testutil.CollectAndCount(c.opLatency))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}
