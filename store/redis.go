package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Tsukikage7/throttle-kit/logger"
)

// redisStore Redis 存储实现.
//
// 每个命名空间对应一个独立的 Redis DB，客户端按需惰性创建，
// 由存储实例显式持有，不依赖进程级单例.
type redisStore struct {
	config  *Config
	logger  logger.Logger
	mu      sync.Mutex
	clients map[int]*redis.Client
	closed  bool
}

// NewRedisStore 创建 Redis 存储.
func NewRedisStore(config *Config, log logger.Logger) (Store, error) {
	if config == nil {
		return nil, ErrNilConfig
	}

	if config.Addr == "" {
		return nil, ErrEmptyAddr
	}

	config.ApplyDefaults()

	s := &redisStore{
		config:  config,
		logger:  log,
		clients: make(map[int]*redis.Client),
	}

	// 校验连通性，失败时不返回实例
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	client, err := s.client(0)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorf("[store] redis connect failed: addr=%s, err=%v", config.Addr, err)
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	log.Debugf("[store] redis connected: addr=%s", config.Addr)

	return s, nil
}

// client 返回指定命名空间的客户端，不存在时惰性创建.
func (r *redisStore) client(db int) (*redis.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if c, ok := r.clients[db]; ok {
		return c, nil
	}

	c := redis.NewClient(&redis.Options{
		Addr:         r.config.Addr,
		Password:     r.config.Password,
		DB:           db,
		PoolSize:     r.config.PoolSize,
		DialTimeout:  r.config.Timeout,
		WriteTimeout: r.config.WriteTimeout,
		MaxRetries:   r.config.MaxRetries,
	})
	r.clients[db] = c

	return c, nil
}

// Get 获取值.
func (r *redisStore) Get(ctx context.Context, db int, key string) (string, error) {
	client, err := r.client(db)
	if err != nil {
		return "", err
	}

	result, err := client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		r.logger.Errorf("[store] GET failed: db=%d, key=%s, err=%v", db, key, err)
		return "", err
	}
	return result, nil
}

// Set 设置键值对.
func (r *redisStore) Set(ctx context.Context, db int, key string, value any) error {
	client, err := r.client(db)
	if err != nil {
		return err
	}

	data, err := r.serialize(value)
	if err != nil {
		return err
	}

	if err := client.Set(ctx, key, data, 0).Err(); err != nil {
		r.logger.Errorf("[store] SET failed: db=%d, key=%s, err=%v", db, key, err)
		return err
	}
	return nil
}

// Del 删除键.
func (r *redisStore) Del(ctx context.Context, db int, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	client, err := r.client(db)
	if err != nil {
		return err
	}

	if err := client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Errorf("[store] DEL failed: db=%d, keys=%v, err=%v", db, keys, err)
		return err
	}
	return nil
}

// GetSet 原子地替换值并返回旧值.
// 键不存在时返回 ErrNotFound，此时新值已写入.
func (r *redisStore) GetSet(ctx context.Context, db int, key string, value any) (string, error) {
	client, err := r.client(db)
	if err != nil {
		return "", err
	}

	data, err := r.serialize(value)
	if err != nil {
		return "", err
	}

	result, err := client.GetSet(ctx, key, data).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		r.logger.Errorf("[store] GETSET failed: db=%d, key=%s, err=%v", db, key, err)
		return "", err
	}
	return result, nil
}

// Incr 递增.
func (r *redisStore) Incr(ctx context.Context, db int, key string) (int64, error) {
	client, err := r.client(db)
	if err != nil {
		return 0, err
	}

	result, err := client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Errorf("[store] INCR failed: db=%d, key=%s, err=%v", db, key, err)
		return 0, err
	}
	return result, nil
}

// LPush 向列表左侧推入一个元素.
func (r *redisStore) LPush(ctx context.Context, db int, key string, value any) error {
	client, err := r.client(db)
	if err != nil {
		return err
	}

	data, err := r.serialize(value)
	if err != nil {
		return err
	}

	if err := client.LPush(ctx, key, data).Err(); err != nil {
		r.logger.Errorf("[store] LPUSH failed: db=%d, key=%s, err=%v", db, key, err)
		return err
	}
	return nil
}

// BLPop 阻塞弹出列表最左元素.
func (r *redisStore) BLPop(ctx context.Context, db int, key string, timeout time.Duration) (string, error) {
	client, err := r.client(db)
	if err != nil {
		return "", err
	}

	result, err := client.BLPop(ctx, timeout, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrPopTimeout
		}
		r.logger.Errorf("[store] BLPOP failed: db=%d, key=%s, err=%v", db, key, err)
		return "", err
	}

	// BLPOP 返回 [key, value]
	if len(result) < 2 {
		return "", ErrNotFound
	}
	return result[1], nil
}

// Ping 测试连接.
func (r *redisStore) Ping(ctx context.Context) error {
	client, err := r.client(0)
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Close 关闭所有命名空间的连接.
func (r *redisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for db, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			r.logger.Errorf("[store] redis close failed: db=%d, err=%v", db, err)
			firstErr = err
		}
	}
	r.clients = nil

	r.logger.Debug("[store] redis connections closed")
	return firstErr
}

// Client 返回指定命名空间的底层客户端.
func (r *redisStore) Client(db int) any {
	client, err := r.client(db)
	if err != nil {
		return nil
	}
	return client
}

// serialize 序列化值.
func (r *redisStore) serialize(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", ErrSerialize
		}
		return string(data), nil
	}
}
