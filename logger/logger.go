// Package logger 提供结构化日志记录功能.
package logger

import "context"

// 日志级别常量.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
	LevelPanic = "panic"
)

// 输出格式常量.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Field 表示一个日志字段.
type Field struct {
	Key   string
	Value any
}

// Logger 日志记录器接口.
type Logger interface {
	// 基础日志方法
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)

	// 结构化日志方法
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	// 生命周期管理
	Sync() error
	Close() error
}

// NewLogger 创建 logger 实例.
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	return newZapLogger(config)
}

// MustNewLogger 创建 logger 实例，失败时 panic.
func MustNewLogger(config *Config) Logger {
	l, err := NewLogger(config)
	if err != nil {
		panic(err)
	}
	return l
}

// NewNop 创建不输出任何内容的 logger，测试和默认值用.
func NewNop() Logger {
	return &nopLogger{}
}

// nopLogger 空日志实现.
type nopLogger struct{}

func (n *nopLogger) Debug(args ...any)                      {}
func (n *nopLogger) Debugf(format string, args ...any)      {}
func (n *nopLogger) Info(args ...any)                       {}
func (n *nopLogger) Infof(format string, args ...any)       {}
func (n *nopLogger) Warn(args ...any)                       {}
func (n *nopLogger) Warnf(format string, args ...any)       {}
func (n *nopLogger) Error(args ...any)                      {}
func (n *nopLogger) Errorf(format string, args ...any)      {}
func (n *nopLogger) Fatal(args ...any)                      {}
func (n *nopLogger) Fatalf(format string, args ...any)      {}
func (n *nopLogger) With(fields ...Field) Logger            { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger { return n }
func (n *nopLogger) Sync() error                            { return nil }
func (n *nopLogger) Close() error                           { return nil }
