// Package worker Prometheus 指标导出
package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 包含所有构建 Worker 指标
//
// 编排器字段为 nil 时所有记录方法都是空操作，测试无需注册表
type Metrics struct {
	// Run 指标
	RunsTotal    *prometheus.CounterVec
	RunsRunning  prometheus.Gauge
	RunDuration  *prometheus.HistogramVec
	RunIteration prometheus.Histogram

	// 工具调用指标
	ToolDispatchTotal *prometheus.CounterVec

	// 队列指标
	BuildsConsumed prometheus.Counter
}

// NewMetrics 创建构建 Worker 指标实例
func NewMetrics(namespace, consumerID string) *Metrics {
	labels := prometheus.Labels{"consumer_id": consumerID}

	return &Metrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "runs_total",
				Help:        "Total build runs by outcome",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		RunsRunning: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "runs_running",
				Help:        "Number of currently running builds",
				ConstLabels: labels,
			},
		),
		RunDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "run_duration_seconds",
				Help:        "Build run duration in seconds",
				Buckets:     []float64{5, 15, 30, 60, 120, 300, 600, 1800},
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		RunIteration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "run_iterations",
				Help:        "Agent loop iterations per run",
				Buckets:     []float64{1, 2, 4, 8, 12, 18, 25, 40},
				ConstLabels: labels,
			},
		),
		ToolDispatchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "tool_dispatch_total",
				Help:        "Total tool dispatches by tool name",
				ConstLabels: labels,
			},
			[]string{"tool"},
		),
		BuildsConsumed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "builds_consumed_total",
				Help:        "Total build messages consumed from the queue",
				ConstLabels: labels,
			},
		),
	}
}

// RecordRunStart 记录 Run 开始
func (m *Metrics) RecordRunStart() {
	if m == nil {
		return
	}
	m.RunsRunning.Inc()
}

// RecordRunComplete 记录 Run 结束
func (m *Metrics) RecordRunComplete(status string, duration time.Duration, iterations int) {
	if m == nil {
		return
	}
	m.RunsRunning.Dec()
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(duration.Seconds())
	if iterations > 0 {
		m.RunIteration.Observe(float64(iterations))
	}
}

// RecordToolDispatch 记录一次工具调用
func (m *Metrics) RecordToolDispatch(tool string) {
	if m == nil {
		return
	}
	m.ToolDispatchTotal.WithLabelValues(tool).Inc()
}

// RecordBuildConsumed 记录一条队列消息被领取
func (m *Metrics) RecordBuildConsumed() {
	if m == nil {
		return
	}
	m.BuildsConsumed.Inc()
}
