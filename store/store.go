// Package store 提供按命名空间分区的共享原子存储接口和实现.
//
// 所有键都归属于一个数字命名空间（对应 Redis 的 DB 编号），
// 跨进程协调只依赖这里暴露的原子原语.
package store

import (
	"context"
	"time"

	"github.com/Tsukikage7/throttle-kit/logger"
)

// 存储类型常量.
const (
	TypeRedis  = "redis"
	TypeMemory = "memory"
)

// 默认配置值.
const (
	DefaultPoolSize     = 10
	DefaultTimeout      = 5 * time.Second
	DefaultWriteTimeout = 3 * time.Second
	DefaultMaxRetries   = 3
)

// Store 共享存储接口.
//
// 每个方法的第一个参数 db 指定命名空间，所有实现必须保证
// 单条命令级别的原子性.
type Store interface {
	// 基础操作
	Get(ctx context.Context, db int, key string) (string, error)
	Set(ctx context.Context, db int, key string, value any) error
	Del(ctx context.Context, db int, keys ...string) error

	// 原子操作
	GetSet(ctx context.Context, db int, key string, value any) (string, error)
	Incr(ctx context.Context, db int, key string) (int64, error)

	// 列表操作
	LPush(ctx context.Context, db int, key string, value any) error
	// BLPop 阻塞弹出列表最左元素.
	// timeout 为 0 时无限等待，直到有元素可弹出或 context 取消.
	BLPop(ctx context.Context, db int, key string, timeout time.Duration) (string, error)

	// 资源管理
	Ping(ctx context.Context) error
	Close() error
	Client(db int) any
}

// NewStore 创建存储实例.
// log 是必需参数，不能为 nil.
func NewStore(config *Config, log logger.Logger) (Store, error) {
	if log == nil {
		return nil, ErrNilLogger
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.ApplyDefaults()

	switch config.Type {
	case TypeRedis:
		return NewRedisStore(config, log)
	case TypeMemory:
		return NewMemoryStore(config, log)
	default:
		return nil, ErrUnsupported
	}
}

// MustNewStore 创建存储实例，失败时 panic.
func MustNewStore(config *Config, log logger.Logger) Store {
	s, err := NewStore(config, log)
	if err != nil {
		panic(err)
	}
	return s
}
