// Package throttle 提供跨进程限速.
//
// 多个互不相关的进程共享同一个"每分钟操作数"预算，
// 通过共享存储中的计数器和时间戳协调，读改写序列由内部的
// 分布式互斥锁保护，构成真正跨进程的临界区.
//
// 使用:
//
//	th, err := throttle.New(&throttle.Config{
//	    RPM:    240,
//	    Store:  st,
//	    Logger: log,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := th.Throttle(ctx); err != nil {
//	    return err
//	}
//	// 此时调用方可以执行受限操作
package throttle

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Tsukikage7/throttle-kit/logger"
	"github.com/Tsukikage7/throttle-kit/metrics"
	"github.com/Tsukikage7/throttle-kit/semaphore"
	"github.com/Tsukikage7/throttle-kit/store"
)

// Throttle 跨进程限速器.
//
// 已知的活性风险：互斥锁没有租约或过期机制，持有锁的进程
// 崩溃后其他所有参与者会永久阻塞，需要人工调用 Cleanup 修复.
type Throttle struct {
	store     store.Store
	logger    logger.Logger
	collector metrics.Collector

	rpm            float64
	countKey       string
	timerKey       string
	db             int
	resetThreshold float64

	// fallback 构造时刻的时间戳（unix 秒）.
	// 共享时间戳尚未写入时作为窗口起点，属于每实例的回退值，
	// 多进程同时首次使用时首个窗口可能欠限速.
	fallback float64

	mutex *semaphore.Distributed
}

// New 创建跨进程限速器.
func New(cfg *Config) (*Throttle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewNop()
	}

	mutex, err := semaphore.NewDistributed(&semaphore.DistributedConfig{
		Store:     cfg.Store,
		Permits:   1,
		DB:        cfg.DB,
		GateKey:   cfg.MutexKey,
		InitKey:   cfg.MutexInitKey,
		Logger:    cfg.Logger,
		Collector: collector,
	})
	if err != nil {
		return nil, err
	}

	return &Throttle{
		store:          cfg.Store,
		logger:         cfg.Logger,
		collector:      collector,
		rpm:            cfg.RPM,
		countKey:       cfg.CountKey,
		timerKey:       cfg.TimerKey,
		db:             cfg.DB,
		resetThreshold: cfg.ResetThreshold,
		fallback:       nowSeconds(),
		mutex:          mutex,
	}, nil
}

// Throttle 执行一次限速检查，阻塞到全局速率允许为止.
//
// 整个读取-判断-等待-更新序列在互斥锁内执行，等待也在锁内进行，
// 并发调用者被逐个串行放行。返回时本次调用已计入共享状态.
func (t *Throttle) Throttle(ctx context.Context) error {
	if err := t.mutex.Acquire(ctx); err != nil {
		return err
	}
	// 释放不能随调用方取消而失败，否则互斥锁会泄漏
	defer func() {
		if err := t.mutex.Release(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warnf("[throttle] mutex release failed: key=%s, err=%v", t.countKey, err)
		}
	}()

	count, err := t.currentCount(ctx)
	if err != nil {
		return err
	}

	lastCall, err := t.lastCall(ctx)
	if err != nil {
		return err
	}

	interval := t.Interval()
	window := nowSeconds() - lastCall

	// 计数器触顶归零，避免无限增长
	if count >= t.resetThreshold*t.rpm {
		if err := t.store.Set(ctx, t.db, t.countKey, "0"); err != nil {
			return err
		}
		t.logger.Debugf("[throttle] counter reset: key=%s, count=%.0f", t.countKey, count)
	}

	if window < interval {
		wait := time.Duration((interval - window) * float64(time.Second))
		t.collector.ObserveThrottleWait(t.countKey, wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := t.store.Incr(ctx, t.db, t.countKey); err != nil {
		return err
	}

	// 等待结束后的时刻才是本次调用的记录点
	if err := t.store.Set(ctx, t.db, t.timerKey, formatSeconds(nowSeconds())); err != nil {
		return err
	}

	t.collector.IncThrottle(t.countKey)

	return nil
}

// currentCount 读取共享计数器，未写入时为 0.
func (t *Throttle) currentCount(ctx context.Context) (float64, error) {
	raw, err := t.store.Get(ctx, t.db, t.countKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	count, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, store.ErrNotInteger
	}
	return count, nil
}

// lastCall 读取共享时间戳，未写入时回退到构造时刻.
func (t *Throttle) lastCall(ctx context.Context) (float64, error) {
	raw, err := t.store.Get(ctx, t.db, t.timerKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return t.fallback, nil
		}
		return 0, err
	}

	last, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, store.ErrNotInteger
	}
	return last, nil
}

// Cleanup 清除全局限速状态.
//
// 删除共享计数器、时间戳和互斥锁的全部键，对所有参与者生效.
// 只能在确认没有进程正在限速时调用，典型用途是测试夹具之间
// 重置状态.
func (t *Throttle) Cleanup(ctx context.Context) error {
	if err := t.mutex.Cleanup(ctx); err != nil {
		return err
	}
	return t.store.Del(ctx, t.db, t.countKey, t.timerKey)
}

// 配置访问器

// RPM 返回每分钟允许的操作数.
func (t *Throttle) RPM() float64 {
	return t.rpm
}

// Interval 返回两次调用之间的最小间隔秒数.
func (t *Throttle) Interval() float64 {
	return 60.0 / t.rpm
}

// CountKey 返回共享计数器的键.
func (t *Throttle) CountKey() string {
	return t.countKey
}

// TimerKey 返回共享时间戳的键.
func (t *Throttle) TimerKey() string {
	return t.timerKey
}

// DB 返回命名空间编号.
func (t *Throttle) DB() int {
	return t.db
}

// ResetThreshold 返回计数器归零阈值倍数.
func (t *Throttle) ResetThreshold() float64 {
	return t.resetThreshold
}

// MutexKey 返回内部互斥锁的 gate 键.
func (t *Throttle) MutexKey() string {
	return t.mutex.GateKey()
}

// MutexInitKey 返回内部互斥锁的初始化标记键.
func (t *Throttle) MutexInitKey() string {
	return t.mutex.InitKey()
}

// nowSeconds 返回当前的 unix 秒（含小数部分）.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// formatSeconds 格式化 unix 秒.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
