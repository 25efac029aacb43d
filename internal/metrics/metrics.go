// Package metrics 存储层的 Prometheus 指标。所有方法对 nil 接收者安全，
// 测试和 CLI 可以不注册指标直接传 nil。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "baas_cache"

// Metrics 连接池、操作与淘汰指标
type Metrics struct {
	poolWait     prometheus.Histogram
	poolInUse    prometheus.Gauge
	poolTimeouts prometheus.Counter
	operations   *prometheus.CounterVec
	evictions    *prometheus.CounterVec
	usedMemory   prometheus.Gauge
}

// New 创建并注册指标；reg 为 nil 时使用默认注册器
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		poolWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting for a pooled connection.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		poolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "in_use",
			Help:      "Connections currently held by operations.",
		}),
		poolTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_timeouts_total",
			Help:      "Acquisitions that gave up waiting for a connection.",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by name and result.",
		}, []string{"op", "result"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "evictions_total",
			Help:      "Records evicted under capacity pressure, by kind.",
		}, []string{"kind"}),
		usedMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "used_memory_bytes",
			Help:      "Last used_memory reported by the store.",
		}),
	}
	reg.MustRegister(m.poolWait, m.poolInUse, m.poolTimeouts, m.operations, m.evictions, m.usedMemory)
	return m
}

func (m *Metrics) ObserveAcquire(wait time.Duration) {
	if m == nil {
		return
	}
	m.poolWait.Observe(wait.Seconds())
	m.poolInUse.Inc()
}

func (m *Metrics) ObserveRelease() {
	if m == nil {
		return
	}
	m.poolInUse.Dec()
}

func (m *Metrics) ObserveTimeout() {
	if m == nil {
		return
	}
	m.poolTimeouts.Inc()
}

// ObserveOp 记录一次存储操作；err 非 nil 记为 error
func (m *Metrics) ObserveOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveEviction(kind string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetUsedMemory(bytes int64) {
	if m == nil {
		return
	}
	m.usedMemory.Set(float64(bytes))
}
