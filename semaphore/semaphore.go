// Package semaphore 提供信号量并发控制.
//
// 支持本地和分布式两种模式。分布式信号量基于共享存储的
// 阻塞列表实现，可在多个进程、多台主机之间协调.
//
// 本地信号量:
//
//	sem := semaphore.NewLocal(10) // 最多10个并发
//	if err := sem.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer sem.Release(ctx)
//
// 分布式信号量:
//
//	sem, err := semaphore.NewDistributed(&semaphore.DistributedConfig{
//	    Store:   st,
//	    Permits: 1,
//	    GateKey: "api:gate",
//	    InitKey: "api:gate:init",
//	    Logger:  log,
//	})
//	if err := sem.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer sem.Release(ctx)
package semaphore

import (
	"context"
)

// Semaphore 信号量接口.
type Semaphore interface {
	// Acquire 获取一个许可.
	// 如果没有可用许可，会阻塞等待直到获取成功或 context 取消.
	Acquire(ctx context.Context) error

	// Release 释放一个许可.
	// 本实例没有未释放的许可时拒绝释放并返回 ErrNotAcquired.
	Release(ctx context.Context) error

	// Cleanup 清除信号量在共享存储中的全部状态.
	// 破坏性操作，只能由监督进程在确认没有持有者时调用.
	Cleanup(ctx context.Context) error

	// Permits 返回配置的许可总数.
	Permits() int64
}
