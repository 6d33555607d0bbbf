// Package metrics 提供 Prometheus 指标收集功能.
package metrics

import (
	"errors"
	"net/http"
	"time"
)

// ErrNilConfig 配置为空.
var ErrNilConfig = errors.New("metrics: 配置为空")

// Collector 指标收集器接口.
type Collector interface {
	// 信号量指标
	IncAcquire(gate string)
	IncRelease(gate string)
	IncReleaseMisuse(gate string)

	// 限速指标
	IncThrottle(key string)
	ObserveThrottleWait(key string, wait time.Duration)
}

// Config 指标监控配置.
type Config struct {
	// Path 指标暴露路径，默认 /metrics
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// Namespace 指标命名空间
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`
}

// DefaultConfig 返回默认配置.
func DefaultConfig() *Config {
	return &Config{
		Path:      "/metrics",
		Namespace: "throttlekit",
	}
}

// NewMetrics 创建指标收集器.
func NewMetrics(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	return NewPrometheus(cfg)
}

// MustNewMetrics 创建指标收集器，失败时 panic.
func MustNewMetrics(cfg *Config) *PrometheusCollector {
	c, err := NewMetrics(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// NewNop 创建不做任何事的收集器，默认值和测试用.
func NewNop() Collector {
	return &nopCollector{}
}

// nopCollector 空收集器实现.
type nopCollector struct{}

func (n *nopCollector) IncAcquire(gate string)                             {}
func (n *nopCollector) IncRelease(gate string)                             {}
func (n *nopCollector) IncReleaseMisuse(gate string)                       {}
func (n *nopCollector) IncThrottle(key string)                             {}
func (n *nopCollector) ObserveThrottleWait(key string, wait time.Duration) {}

// Handler 指标暴露接口.
type Handler interface {
	GetHandler() http.Handler
	GetPath() string
}
