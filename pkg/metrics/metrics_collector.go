package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
// 只收集交易核心关心的两类指标：缓存命中情况和下单结果
type MetricsCollector struct {
	// 缓存指标
	cacheHitsTotal      *prometheus.CounterVec
	cacheMissesTotal    *prometheus.CounterVec
	cacheFallbacksTotal prometheus.Counter
	cacheErrorsTotal    *prometheus.CounterVec

	// 订单指标
	orderCommitsTotal   *prometheus.CounterVec
	orderCommitDuration prometheus.Histogram
}

// NewMetricsCollector 创建指标收集器
// promauto 注册到全局 registry，进程内只应创建一次
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		cacheHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"level"},
		),
		cacheMissesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"level"},
		),
		cacheFallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_fallbacks_total",
				Help: "Total number of reads served by the local fallback cache",
			},
		),
		cacheErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_errors_total",
				Help: "Total number of swallowed cache backend errors",
			},
			[]string{"operation"},
		),
		orderCommitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_commits_total",
				Help: "Total number of order commit attempts by result",
			},
			[]string{"result"},
		),
		orderCommitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_commit_duration_seconds",
				Help:    "Order commit transaction duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordCacheHit 记录缓存命中
func (m *MetricsCollector) RecordCacheHit(level string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(level).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *MetricsCollector) RecordCacheMiss(level string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.WithLabelValues(level).Inc()
}

// RecordCacheFallback 记录一次本地降级读
func (m *MetricsCollector) RecordCacheFallback() {
	if m == nil {
		return
	}
	m.cacheFallbacksTotal.Inc()
}

// RecordCacheError 记录一次被吞掉的缓存后端错误
func (m *MetricsCollector) RecordCacheError(operation string) {
	if m == nil {
		return
	}
	m.cacheErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordOrderCommit 记录下单结果
// result: success / insufficient_inventory / insufficient_points / invalid_coupon / error
func (m *MetricsCollector) RecordOrderCommit(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.orderCommitsTotal.WithLabelValues(result).Inc()
	m.orderCommitDuration.Observe(duration.Seconds())
}
