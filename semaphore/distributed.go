package semaphore

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/Tsukikage7/throttle-kit/logger"
	"github.com/Tsukikage7/throttle-kit/metrics"
	"github.com/Tsukikage7/throttle-kit/store"
)

// Distributed 分布式信号量.
//
// 基于共享存储的阻塞列表实现：gate 列表中的每个元素代表一个
// 可用许可，Acquire 阻塞弹出，Release 推回.
//
// 注意：首次使用时只向 gate 投放一个令牌，与配置的许可数量无关，
// 因此 Permits > 1 时并不等价于计数信号量，目前只应作为
// 互斥锁（Permits = 1）使用.
type Distributed struct {
	store      store.Store
	permits    int64
	db         int
	gateKey    string
	initKey    string
	instanceID string
	logger     logger.Logger
	collector  metrics.Collector

	mu sync.Mutex
	// initialized 本实例是否已执行过 gate 初始化
	initialized bool
	// releasable 本实例还可以合法释放的许可数.
	// 初值等于 permits，Acquire 减一，Release 加一，从不超过 permits.
	releasable int64
}

// DistributedConfig 分布式信号量配置.
type DistributedConfig struct {
	// Store 共享存储实例
	Store store.Store `json:"-" yaml:"-" mapstructure:"-"`

	// Permits 许可总数
	Permits int64 `json:"permits" yaml:"permits" mapstructure:"permits"`

	// DB 共享存储命名空间编号
	DB int `json:"db" yaml:"db" mapstructure:"db"`

	// GateKey 可用许可列表的键
	GateKey string `json:"gate_key" yaml:"gate_key" mapstructure:"gate_key"`

	// InitKey 初始化标记的键
	InitKey string `json:"init_key" yaml:"init_key" mapstructure:"init_key"`

	// Logger 日志记录器
	Logger logger.Logger `json:"-" yaml:"-" mapstructure:"-"`

	// Collector 指标收集器，可选
	Collector metrics.Collector `json:"-" yaml:"-" mapstructure:"-"`
}

// Validate 验证配置.
func (c *DistributedConfig) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Store == nil {
		return ErrNilStore
	}
	if c.Logger == nil {
		return ErrNilLogger
	}
	if c.Permits <= 0 {
		return ErrInvalidPermits
	}
	if c.DB < 0 {
		return ErrInvalidDB
	}
	if c.GateKey == "" || c.InitKey == "" {
		return ErrEmptyKey
	}
	return nil
}

// NewDistributed 创建分布式信号量.
func NewDistributed(cfg *DistributedConfig) (*Distributed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewNop()
	}

	return &Distributed{
		store:      cfg.Store,
		permits:    cfg.Permits,
		db:         cfg.DB,
		gateKey:    cfg.GateKey,
		initKey:    cfg.InitKey,
		instanceID: uuid.New().String(),
		logger:     cfg.Logger,
		collector:  collector,
		releasable: cfg.Permits,
	}, nil
}

// Acquire 获取一个许可，阻塞直到成功或 context 取消.
func (d *Distributed) Acquire(ctx context.Context) error {
	_, err := d.AcquireToken(ctx)
	return err
}

// AcquireToken 获取一个许可并返回弹出的令牌值.
//
// 令牌值仅供参考，调用方不需要解析它.
func (d *Distributed) AcquireToken(ctx context.Context) (string, error) {
	if err := d.initGate(ctx); err != nil {
		return "", err
	}

	token, err := d.store.BLPop(ctx, d.db, d.gateKey, 0)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	d.releasable--
	d.mu.Unlock()

	d.collector.IncAcquire(d.gateKey)

	return token, nil
}

// initGate 惰性初始化 gate，每个实例只执行一次.
//
// 用 GetSet 原子地抢占初始化标记，抢到的实例向 gate 投放
// 唯一的种子令牌；竞争失败的实例不投放.
func (d *Distributed) initGate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	previous, err := d.store.GetSet(ctx, d.db, d.initKey, "1")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if previous != "1" {
		// 种子令牌携带许可数量，仅投放一个
		if err := d.store.LPush(ctx, d.db, d.gateKey, strconv.FormatInt(d.permits, 10)); err != nil {
			return err
		}
		d.logger.Debugf("[semaphore] gate seeded: key=%s, instance=%s", d.gateKey, d.instanceID)
	}

	d.initialized = true
	return nil
}

// Release 释放一个许可.
//
// 守卫只作用于本实例：没有未释放的许可时拒绝并记录警告，
// 不会推回令牌。跨实例的配对正确性由调用方保证.
func (d *Distributed) Release(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.releasable >= d.permits {
		d.logger.Warnf("[semaphore] release without acquire: key=%s, instance=%s", d.gateKey, d.instanceID)
		d.collector.IncReleaseMisuse(d.gateKey)
		return ErrNotAcquired
	}

	if err := d.store.LPush(ctx, d.db, d.gateKey, "1"); err != nil {
		return err
	}
	d.releasable++

	d.collector.IncRelease(d.gateKey)

	return nil
}

// Cleanup 删除 gate 和初始化标记.
//
// 会使所有当前持有者的许可失效，只能由监督进程在重置全局
// 状态时调用，普通参与者不得在生命周期中途调用.
func (d *Distributed) Cleanup(ctx context.Context) error {
	return d.store.Del(ctx, d.db, d.gateKey, d.initKey)
}

// Permits 返回配置的许可总数.
func (d *Distributed) Permits() int64 {
	return d.permits
}

// DB 返回命名空间编号.
func (d *Distributed) DB() int {
	return d.db
}

// GateKey 返回可用许可列表的键.
func (d *Distributed) GateKey() string {
	return d.gateKey
}

// InitKey 返回初始化标记的键.
func (d *Distributed) InitKey() string {
	return d.initKey
}

// InstanceID 返回本实例的唯一标识.
func (d *Distributed) InstanceID() string {
	return d.instanceID
}
