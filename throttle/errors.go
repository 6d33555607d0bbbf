package throttle

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("throttle: 配置不能为空")

	// ErrNilStore 存储为空.
	ErrNilStore = errors.New("throttle: 存储不能为空")

	// ErrNilLogger 日志记录器为空.
	ErrNilLogger = errors.New("throttle: 日志记录器不能为空")

	// ErrInvalidRPM 速率无效.
	ErrInvalidRPM = errors.New("throttle: rpm 必须大于 0")

	// ErrInvalidDB 命名空间编号无效.
	ErrInvalidDB = errors.New("throttle: 命名空间编号不能为负数")

	// ErrInvalidThreshold 归零阈值无效.
	ErrInvalidThreshold = errors.New("throttle: reset_threshold 不能为负数")
)
