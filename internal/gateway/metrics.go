// Package gateway Prometheus 指标导出
package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 网关指标
type Metrics struct {
	// WebSocket 指标
	WSConnectionsActive prometheus.Gauge
	WSEventsForwarded   *prometheus.CounterVec

	// 令牌指标
	TokensIssued prometheus.Counter

	// HTTP 指标
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics 创建指标实例并注册到默认注册表
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		WSConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections_active",
				Help:      "Current number of open WebSocket subscriptions",
			},
		),
		WSEventsForwarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_events_forwarded_total",
				Help:      "Run events forwarded to WebSocket clients",
			},
			[]string{"topic"},
		),
		TokensIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscription_tokens_issued_total",
				Help:      "Subscription tokens issued",
			},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// ConnectionOpened 记录一个 WebSocket 连接建立
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.WSConnectionsActive.Inc()
}

// ConnectionClosed 记录一个 WebSocket 连接关闭
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.WSConnectionsActive.Dec()
}

// RecordEventForwarded 记录一条事件推送
func (m *Metrics) RecordEventForwarded(topic string) {
	if m == nil {
		return
	}
	m.WSEventsForwarded.WithLabelValues(topic).Inc()
}

// RecordTokenIssued 记录一次令牌签发
func (m *Metrics) RecordTokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssued.Inc()
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, path, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
