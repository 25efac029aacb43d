package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAcquire(time.Millisecond)
	m.ObserveRelease()
	m.ObserveTimeout()
	m.ObserveOp("create_asset", nil)
	m.ObserveEviction("audio")
	m.SetUsedMemory(10)
}

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAcquire(time.Millisecond)
	m.ObserveAcquire(time.Millisecond)
	m.ObserveRelease()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poolInUse))

	m.ObserveTimeout()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.poolTimeouts))

	m.ObserveOp("get_user", nil)
	m.ObserveOp("get_user", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("get_user", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("get_user", "error")))

	m.ObserveEviction("video")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions.WithLabelValues("video")))

	m.SetUsedMemory(2048)
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.usedMemory))
}
