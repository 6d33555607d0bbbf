package store

import "errors"

// 预定义错误常量.
var (
	// ErrNotFound 键不存在.
	ErrNotFound = errors.New("store: 键不存在")

	// ErrPopTimeout 阻塞弹出超时.
	ErrPopTimeout = errors.New("store: 阻塞弹出超时")

	// ErrNilConfig 存储配置为空.
	ErrNilConfig = errors.New("store: 配置为空")

	// ErrEmptyAddr 存储地址为空.
	ErrEmptyAddr = errors.New("store: 地址为空")

	// ErrUnsupported 不支持的存储类型.
	ErrUnsupported = errors.New("store: 不支持的存储类型")

	// ErrNilLogger 日志记录器为空.
	ErrNilLogger = errors.New("store: 日志记录器为空")

	// ErrNotInteger 值不是整数.
	ErrNotInteger = errors.New("store: 值不是整数")

	// ErrSerialize 序列化值失败.
	ErrSerialize = errors.New("store: 序列化值失败")

	// ErrClosed 存储已关闭.
	ErrClosed = errors.New("store: 存储已关闭")
)
