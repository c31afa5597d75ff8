package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// 求值指标
	evaluationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantdesk_evaluation_total",
			Help: "Total number of indicator evaluations",
		},
		[]string{"indicator", "status"},
	)

	evaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantdesk_evaluation_duration_seconds",
			Help:    "Indicator evaluation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"indicator"},
	)

	// 缓存指标
	cacheHitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantdesk_cache_hit_total",
			Help: "Total number of evaluation cache hits",
		},
		[]string{"tier"}, // tier: memory, l2
	)

	cacheMissTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quantdesk_cache_miss_total",
			Help: "Total number of evaluation cache misses",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_cache_entries",
			Help: "Number of entries in the in-memory evaluation cache",
		},
	)

	// Worker 指标
	workerRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantdesk_worker_request_total",
			Help: "Total number of worker requests",
		},
		[]string{"op", "status"}, // status: ok, error, timeout, closed
	)

	workerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantdesk_worker_request_duration_seconds",
			Help:    "Worker request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"op"},
	)

	workerInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_worker_inflight",
			Help: "Number of requests currently being processed by workers",
		},
	)

	workerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_worker_queue_depth",
			Help: "Number of requests waiting in the worker queue",
		},
	)

	// 回测指标
	backtestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantdesk_backtest_total",
			Help: "Total number of backtests executed",
		},
		[]string{"status"},
	)

	backtestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quantdesk_backtest_duration_seconds",
			Help:    "Backtest execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		},
	)

	// WebSocket 指标
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantdesk_websocket_message_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: in, out
	)

	// HTTP 指标
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantdesk_http_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		},
		[]string{"method", "path"},
	)

	// 预警指标
	alertRuleTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantdesk_alert_triggered_total",
			Help: "Total number of alert rule triggers",
		},
		[]string{"symbol", "indicator"},
	)

	// 系统指标
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_goroutine_count",
			Help: "Number of goroutines",
		},
	)

	memoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	processCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_process_cpu_percent",
			Help: "Process CPU usage percentage",
		},
	)

	processMemoryMB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantdesk_process_memory_mb",
			Help: "Process resident memory in megabytes",
		},
	)

	gcPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quantdesk_gc_pause_duration_seconds",
			Help:    "GC pause duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)
)

// PrometheusMetrics Prometheus 指标收集器
type PrometheusMetrics struct{}

// NewPrometheusMetrics 创建 Prometheus 指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// 求值相关指标记录

// RecordEvaluation 记录一次指标求值
func (pm *PrometheusMetrics) RecordEvaluation(indicator string, duration time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	evaluationTotal.WithLabelValues(indicator, status).Inc()
	if success {
		evaluationDuration.WithLabelValues(indicator).Observe(duration.Seconds())
	}
}

// RecordCacheHit 记录缓存命中
func (pm *PrometheusMetrics) RecordCacheHit(tier string) {
	cacheHitTotal.WithLabelValues(tier).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (pm *PrometheusMetrics) RecordCacheMiss() {
	cacheMissTotal.Inc()
}

// SetCacheEntries 设置内存缓存条目数
func (pm *PrometheusMetrics) SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// Worker 相关指标记录

// RecordWorkerRequest 记录 worker 请求
func (pm *PrometheusMetrics) RecordWorkerRequest(op, status string, duration time.Duration) {
	workerRequestTotal.WithLabelValues(op, status).Inc()
	workerRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetWorkerInflight 设置处理中的请求数
func (pm *PrometheusMetrics) SetWorkerInflight(n int) {
	workerInflight.Set(float64(n))
}

// SetWorkerQueueDepth 设置排队中的请求数
func (pm *PrometheusMetrics) SetWorkerQueueDepth(n int) {
	workerQueueDepth.Set(float64(n))
}

// 回测相关指标记录

// RecordBacktest 记录一次回测
func (pm *PrometheusMetrics) RecordBacktest(duration time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	backtestTotal.WithLabelValues(status).Inc()
	if success {
		backtestDuration.Observe(duration.Seconds())
	}
}

// WebSocket 相关指标记录

// SetWebSocketConnections 设置活跃连接数
func (pm *PrometheusMetrics) SetWebSocketConnections(n int) {
	websocketConnections.Set(float64(n))
}

// RecordWebSocketMessage 记录 WebSocket 消息
func (pm *PrometheusMetrics) RecordWebSocketMessage(direction string) {
	websocketMessageTotal.WithLabelValues(direction).Inc()
}

// HTTP 相关指标记录

// RecordHTTPRequest 记录 HTTP 请求
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// 预警相关指标记录

// RecordAlertTriggered 记录预警触发
func (pm *PrometheusMetrics) RecordAlertTriggered(symbol, indicator string) {
	alertRuleTriggered.WithLabelValues(symbol, indicator).Inc()
}

// 系统相关指标记录

// SetGoroutineCount 设置 Goroutine 数量
func (pm *PrometheusMetrics) SetGoroutineCount(count int) {
	goroutineCount.Set(float64(count))
}

// SetMemoryAlloc 设置堆内存分配
func (pm *PrometheusMetrics) SetMemoryAlloc(bytes uint64) {
	memoryAllocBytes.Set(float64(bytes))
}

// SetProcessCPUPercent 设置进程 CPU 占用率
func (pm *PrometheusMetrics) SetProcessCPUPercent(percent float64) {
	processCPUPercent.Set(percent)
}

// SetProcessMemoryMB 设置进程常驻内存
func (pm *PrometheusMetrics) SetProcessMemoryMB(mb float64) {
	processMemoryMB.Set(mb)
}

// RecordGCPause 记录 GC 停顿时间
func (pm *PrometheusMetrics) RecordGCPause(duration time.Duration) {
	gcPauseDuration.Observe(duration.Seconds())
}

// 全局实例
var globalPrometheusMetrics *PrometheusMetrics

// GetPrometheusMetrics 获取全局 Prometheus 指标收集器
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		globalPrometheusMetrics = NewPrometheusMetrics()
	})
	return globalPrometheusMetrics
}

// 包级便捷函数，热路径直接调用

// RecordEvaluation 记录一次指标求值
func RecordEvaluation(indicator string, duration time.Duration, success bool) {
	GetPrometheusMetrics().RecordEvaluation(indicator, duration, success)
}

// RecordCacheHit 记录缓存命中
func RecordCacheHit(tier string) {
	GetPrometheusMetrics().RecordCacheHit(tier)
}

// RecordCacheMiss 记录缓存未命中
func RecordCacheMiss() {
	GetPrometheusMetrics().RecordCacheMiss()
}

// RecordWorkerRequest 记录 worker 请求
func RecordWorkerRequest(op, status string, duration time.Duration) {
	GetPrometheusMetrics().RecordWorkerRequest(op, status, duration)
}

// RecordBacktest 记录一次回测
func RecordBacktest(duration time.Duration, success bool) {
	GetPrometheusMetrics().RecordBacktest(duration, success)
}
