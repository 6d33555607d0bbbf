package semaphore

import (
	"context"
	"sync"
)

// Local 本地信号量.
//
// 基于 channel 实现，适用于单进程并发控制，
// 与 Distributed 实现同一接口，方便在测试或单机部署中替换.
type Local struct {
	permits int64
	sem     chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewLocal 创建本地信号量.
//
// permits: 最大并发数
func NewLocal(permits int64) *Local {
	if permits <= 0 {
		panic(ErrInvalidPermits)
	}

	return &Local{
		permits: permits,
		sem:     make(chan struct{}, permits),
	}
}

// Acquire 获取一个许可.
func (s *Local) Acquire(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire 尝试获取一个许可，没有可用许可时立即返回 false.
func (s *Local) TryAcquire() bool {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false
	}
	s.mu.RUnlock()

	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release 释放一个许可.
func (s *Local) Release(ctx context.Context) error {
	select {
	case <-s.sem:
		return nil
	default:
		return ErrNotAcquired
	}
}

// Cleanup 重置信号量状态，丢弃所有已占用的许可.
func (s *Local) Cleanup(ctx context.Context) error {
	for {
		select {
		case <-s.sem:
		default:
			return nil
		}
	}
}

// Permits 返回配置的许可总数.
func (s *Local) Permits() int64 {
	return s.permits
}

// Available 返回当前可用的许可数量.
func (s *Local) Available() int64 {
	return s.permits - int64(len(s.sem))
}

// Close 关闭信号量，之后的 Acquire 返回 ErrClosed.
func (s *Local) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
