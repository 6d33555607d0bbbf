package semaphore

import "errors"

// 预定义错误.
var (
	// ErrNotAcquired 本实例没有可释放的许可.
	ErrNotAcquired = errors.New("semaphore: 没有可释放的许可")

	// ErrInvalidPermits 许可数量无效.
	ErrInvalidPermits = errors.New("semaphore: 许可数量必须大于0")

	// ErrInvalidDB 命名空间编号无效.
	ErrInvalidDB = errors.New("semaphore: 命名空间编号不能为负数")

	// ErrEmptyKey 键名为空.
	ErrEmptyKey = errors.New("semaphore: 键名不能为空")

	// ErrNilStore 存储为空.
	ErrNilStore = errors.New("semaphore: 存储不能为空")

	// ErrNilLogger 日志记录器为空.
	ErrNilLogger = errors.New("semaphore: 日志记录器不能为空")

	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("semaphore: 配置不能为空")

	// ErrClosed 信号量已关闭.
	ErrClosed = errors.New("semaphore: 信号量已关闭")
)
