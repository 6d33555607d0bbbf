package store

import "time"

// Config 存储配置.
type Config struct {
	Type         string        `json:"type" yaml:"type" toml:"type" mapstructure:"type"`
	Addr         string        `json:"addr" yaml:"addr" toml:"addr" mapstructure:"addr"`
	Password     string        `json:"password" yaml:"password" toml:"password" mapstructure:"password"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" toml:"pool_size" mapstructure:"pool_size"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout" mapstructure:"write_timeout"`
	MaxRetries   int           `json:"max_retries" yaml:"max_retries" toml:"max_retries" mapstructure:"max_retries"`
}

// ConfigError 配置错误.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "存储配置错误 [" + e.Field + "]: " + e.Message
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	if c.Type != "" && c.Type != TypeRedis && c.Type != TypeMemory {
		return &ConfigError{Field: "type", Message: "必须是 redis 或 memory"}
	}

	if c.Type == TypeRedis && c.Addr == "" {
		return &ConfigError{Field: "addr", Message: "Redis 地址不能为空"}
	}

	return nil
}

// ApplyDefaults 应用默认值.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeRedis
	}

	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// NewRedisConfig 创建 Redis 存储配置.
func NewRedisConfig(addr string) *Config {
	config := &Config{
		Type: TypeRedis,
		Addr: addr,
	}
	config.ApplyDefaults()
	return config
}

// NewMemoryConfig 创建内存存储配置.
func NewMemoryConfig() *Config {
	config := &Config{
		Type: TypeMemory,
	}
	config.ApplyDefaults()
	return config
}
