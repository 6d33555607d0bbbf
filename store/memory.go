package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Tsukikage7/throttle-kit/logger"
)

// memoryStore 内存存储实现.
//
// 按命名空间维护独立的键值表和列表，适用于测试和单进程场景.
type memoryStore struct {
	mu     sync.Mutex
	dbs    map[int]*memoryDB
	logger logger.Logger
	closed bool
}

// memoryDB 单个命名空间的数据.
type memoryDB struct {
	values map[string]string
	lists  map[string][]string
	// signals 每个列表键一个信号 channel，LPush 时关闭以唤醒所有等待者
	signals map[string]chan struct{}
}

// NewMemoryStore 创建内存存储.
func NewMemoryStore(config *Config, log logger.Logger) (Store, error) {
	if config == nil {
		config = NewMemoryConfig()
	}
	config.ApplyDefaults()

	s := &memoryStore{
		dbs:    make(map[int]*memoryDB),
		logger: log,
	}

	log.Debug("[store] memory store initialized")

	return s, nil
}

// db 返回指定命名空间的数据表，不存在时创建.
// 调用方必须持有 s.mu.
func (m *memoryStore) db(db int) *memoryDB {
	d, ok := m.dbs[db]
	if !ok {
		d = &memoryDB{
			values:  make(map[string]string),
			lists:   make(map[string][]string),
			signals: make(map[string]chan struct{}),
		}
		m.dbs[db] = d
	}
	return d
}

// Get 获取值.
func (m *memoryStore) Get(ctx context.Context, db int, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	value, ok := m.db(db).values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set 设置键值对.
func (m *memoryStore) Set(ctx context.Context, db int, key string, value any) error {
	data, err := m.serialize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.db(db).values[key] = data
	return nil
}

// Del 删除键，同时作用于键值表和列表.
func (m *memoryStore) Del(ctx context.Context, db int, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	d := m.db(db)
	for _, key := range keys {
		delete(d.values, key)
		delete(d.lists, key)
	}
	return nil
}

// GetSet 原子地替换值并返回旧值.
// 键不存在时返回 ErrNotFound，此时新值已写入.
func (m *memoryStore) GetSet(ctx context.Context, db int, key string, value any) (string, error) {
	data, err := m.serialize(value)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}

	d := m.db(db)
	previous, ok := d.values[key]
	d.values[key] = data

	if !ok {
		return "", ErrNotFound
	}
	return previous, nil
}

// Incr 递增.
func (m *memoryStore) Incr(ctx context.Context, db int, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	d := m.db(db)

	var current int64
	if raw, ok := d.values[key]; ok {
		if _, err := fmt.Sscanf(raw, "%d", &current); err != nil {
			return 0, ErrNotInteger
		}
	}

	current++
	d.values[key] = fmt.Sprintf("%d", current)

	return current, nil
}

// LPush 向列表左侧推入一个元素，并唤醒该键上的所有阻塞等待者.
func (m *memoryStore) LPush(ctx context.Context, db int, key string, value any) error {
	data, err := m.serialize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	d := m.db(db)
	d.lists[key] = append([]string{data}, d.lists[key]...)

	if ch, ok := d.signals[key]; ok {
		close(ch)
		delete(d.signals, key)
	}

	return nil
}

// BLPop 阻塞弹出列表最左元素.
//
// 被唤醒的等待者重新竞争弹出，竞争失败则继续等待，
// 与 Redis BLPOP 的语义一致：一次推入只唤醒一次成功弹出.
func (m *memoryStore) BLPop(ctx context.Context, db int, key string, timeout time.Duration) (string, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		m.mu.Lock()

		if m.closed {
			m.mu.Unlock()
			return "", ErrClosed
		}

		d := m.db(db)
		if list := d.lists[key]; len(list) > 0 {
			value := list[0]
			d.lists[key] = list[1:]
			m.mu.Unlock()
			return value, nil
		}

		ch, ok := d.signals[key]
		if !ok {
			ch = make(chan struct{})
			d.signals[key] = ch
		}
		m.mu.Unlock()

		select {
		case <-ch:
			// 有新元素，重新竞争
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer:
			return "", ErrPopTimeout
		}
	}
}

// Ping 测试连接（内存存储始终可用）.
func (m *memoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close 关闭存储.
func (m *memoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	// 唤醒所有阻塞中的等待者，让它们观察到关闭状态
	for _, d := range m.dbs {
		for key, ch := range d.signals {
			close(ch)
			delete(d.signals, key)
		}
	}

	m.logger.Debug("[store] memory store closed")
	return nil
}

// Client 返回指定命名空间的底层数据（测试用）.
func (m *memoryStore) Client(db int) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db(db)
}

// ListLen 返回列表长度（仅用于测试）.
func (m *memoryStore) ListLen(db int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.db(db).lists[key])
}

// serialize 序列化值.
func (m *memoryStore) serialize(value any) (string, error) {
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
