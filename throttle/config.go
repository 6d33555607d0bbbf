package throttle

import (
	"github.com/Tsukikage7/throttle-kit/logger"
	"github.com/Tsukikage7/throttle-kit/metrics"
	"github.com/Tsukikage7/throttle-kit/store"
)

// 默认键名.
const (
	DefaultCountKey     = "t:count"
	DefaultTimerKey     = "t:timer"
	DefaultMutexKey     = "t:mutex"
	DefaultMutexInitKey = "t:mutex:init"
)

// DefaultResetThreshold 共享计数器归零阈值的默认倍数.
//
// 计数器达到 ResetThreshold * RPM 时归零，
// 防止存储中的整数无限增长.
const DefaultResetThreshold = 1_000_000

// Config 限速配置.
type Config struct {
	// RPM 每分钟允许的操作数，必填
	RPM float64 `json:"rpm" yaml:"rpm" mapstructure:"rpm"`

	// CountKey 共享调用计数的键
	CountKey string `json:"count_key" yaml:"count_key" mapstructure:"count_key"`

	// TimerKey 共享最近调用时间戳的键
	TimerKey string `json:"timer_key" yaml:"timer_key" mapstructure:"timer_key"`

	// DB 共享存储命名空间编号
	DB int `json:"db" yaml:"db" mapstructure:"db"`

	// ResetThreshold 计数器归零阈值倍数
	ResetThreshold float64 `json:"reset_threshold" yaml:"reset_threshold" mapstructure:"reset_threshold"`

	// MutexKey 内部互斥锁的 gate 键
	MutexKey string `json:"mutex_key" yaml:"mutex_key" mapstructure:"mutex_key"`

	// MutexInitKey 内部互斥锁的初始化标记键
	MutexInitKey string `json:"mutex_init_key" yaml:"mutex_init_key" mapstructure:"mutex_init_key"`

	// Store 共享存储实例
	Store store.Store `json:"-" yaml:"-" mapstructure:"-"`

	// Logger 日志记录器
	Logger logger.Logger `json:"-" yaml:"-" mapstructure:"-"`

	// Collector 指标收集器，可选
	Collector metrics.Collector `json:"-" yaml:"-" mapstructure:"-"`
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Store == nil {
		return ErrNilStore
	}
	if c.Logger == nil {
		return ErrNilLogger
	}
	if c.RPM <= 0 {
		return ErrInvalidRPM
	}
	if c.DB < 0 {
		return ErrInvalidDB
	}
	if c.ResetThreshold < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.CountKey == "" {
		c.CountKey = DefaultCountKey
	}
	if c.TimerKey == "" {
		c.TimerKey = DefaultTimerKey
	}
	if c.MutexKey == "" {
		c.MutexKey = DefaultMutexKey
	}
	if c.MutexInitKey == "" {
		c.MutexInitKey = DefaultMutexInitKey
	}
	if c.ResetThreshold == 0 {
		c.ResetThreshold = DefaultResetThreshold
	}
}
