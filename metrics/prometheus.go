package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector Prometheus 指标收集器实现.
type PrometheusCollector struct {
	config *Config

	// 信号量指标
	acquireTotal       *prometheus.CounterVec
	releaseTotal       *prometheus.CounterVec
	releaseMisuseTotal *prometheus.CounterVec

	// 限速指标
	throttleTotal        *prometheus.CounterVec
	throttleWaitDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheus 创建 Prometheus 指标收集器.
func NewPrometheus(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "throttlekit"
	}

	// 创建新的注册表，避免与默认注册表冲突
	registry := prometheus.NewRegistry()

	c := &PrometheusCollector{
		config:   cfg,
		registry: registry,
	}

	c.acquireTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semaphore",
			Name:      "acquire_total",
			Help:      "Total number of acquired permits",
		},
		[]string{"gate"},
	)

	c.releaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semaphore",
			Name:      "release_total",
			Help:      "Total number of released permits",
		},
		[]string{"gate"},
	)

	c.releaseMisuseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "semaphore",
			Name:      "release_misuse_total",
			Help:      "Total number of refused releases without a matching acquire",
		},
		[]string{"gate"},
	)

	c.throttleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "calls_total",
			Help:      "Total number of throttled calls",
		},
		[]string{"key"},
	)

	c.throttleWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "wait_duration_seconds",
			Help:      "Time spent sleeping to honor the shared rate",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"key"},
	)

	registry.MustRegister(
		c.acquireTotal,
		c.releaseTotal,
		c.releaseMisuseTotal,
		c.throttleTotal,
		c.throttleWaitDuration,
	)

	return c, nil
}

// IncAcquire 记录一次许可获取.
func (c *PrometheusCollector) IncAcquire(gate string) {
	c.acquireTotal.WithLabelValues(gate).Inc()
}

// IncRelease 记录一次许可释放.
func (c *PrometheusCollector) IncRelease(gate string) {
	c.releaseTotal.WithLabelValues(gate).Inc()
}

// IncReleaseMisuse 记录一次被拒绝的释放.
func (c *PrometheusCollector) IncReleaseMisuse(gate string) {
	c.releaseMisuseTotal.WithLabelValues(gate).Inc()
}

// IncThrottle 记录一次限速调用.
func (c *PrometheusCollector) IncThrottle(key string) {
	c.throttleTotal.WithLabelValues(key).Inc()
}

// ObserveThrottleWait 记录限速等待时长.
func (c *PrometheusCollector) ObserveThrottleWait(key string, wait time.Duration) {
	c.throttleWaitDuration.WithLabelValues(key).Observe(wait.Seconds())
}

// GetHandler 返回指标暴露的 HTTP handler.
func (c *PrometheusCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GetPath 返回指标暴露路径.
func (c *PrometheusCollector) GetPath() string {
	if c.config.Path == "" {
		return "/metrics"
	}
	return c.config.Path
}

// Registry 返回底层注册表（测试用）.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}
