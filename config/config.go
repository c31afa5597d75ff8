// Package config 应用配置
// YAML 配置文件加载、校验与热重载。
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 分析服务配置
type Config struct {
	// HTTP 服务
	Server struct {
		Host string `yaml:"host"` // 默认 127.0.0.1
		Port int    `yaml:"port"` // 默认 9876

		RateLimit struct {
			Enabled bool    `yaml:"enabled"`
			RPS     float64 `yaml:"rps"`   // 每秒请求数，默认 50
			Burst   int     `yaml:"burst"` // 突发容量，默认 100
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	// 求值引擎与 worker 池
	Engine struct {
		Workers        int `yaml:"workers"`          // worker 数，默认 CPU 数
		QueueSize      int `yaml:"queue_size"`       // 请求队列容量，默认 256
		RequestTimeout int `yaml:"request_timeout"`  // 单请求超时（秒），默认 30

		// 二级结果缓存（可选）
		Cache struct {
			Enabled bool   `yaml:"enabled"`
			Type    string `yaml:"type"`   // 目前仅 redis
			Prefix  string `yaml:"prefix"` // 键前缀，默认 "quantdesk:eval:"
			TTL     int    `yaml:"ttl"`    // 过期时间（秒），默认 600

			Redis struct {
				Addr     string `yaml:"addr"` // 默认 localhost:6379
				Password string `yaml:"password"`
				DB       int    `yaml:"db"`
				PoolSize int    `yaml:"pool_size"` // 默认 10
			} `yaml:"redis"`
		} `yaml:"cache"`
	} `yaml:"engine"`

	// 数据库（预设、预警规则、回测报告）
	Database struct {
		Type            string `yaml:"type"`              // sqlite, postgres, mysql，默认 sqlite
		DSN             string `yaml:"dsn"`               // 默认 ./data/quantdesk.db
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 默认 20
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 默认 5
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 秒，默认 3600
		LogLevel        string `yaml:"log_level"`         // silent, error, warn, info，默认 error
	} `yaml:"database"`

	// 系统监控
	Monitor struct {
		Enabled  bool `yaml:"enabled"`
		Interval int  `yaml:"interval"` // 采集间隔（秒），默认 30
	} `yaml:"monitor"`

	System struct {
		LogLevel string `yaml:"log_level"` // DEBUG/INFO/WARN/ERROR，默认 INFO
		Timezone string `yaml:"timezone"`  // 如 "Asia/Shanghai"，默认本地时区
	} `yaml:"system"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节加载配置
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 9876
	}
	if c.Server.RateLimit.RPS == 0 {
		c.Server.RateLimit.RPS = 50
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 100
	}

	if c.Engine.QueueSize == 0 {
		c.Engine.QueueSize = 256
	}
	if c.Engine.RequestTimeout == 0 {
		c.Engine.RequestTimeout = 30
	}
	if c.Engine.Cache.Type == "" {
		c.Engine.Cache.Type = "redis"
	}
	if c.Engine.Cache.Prefix == "" {
		c.Engine.Cache.Prefix = "quantdesk:eval:"
	}
	if c.Engine.Cache.TTL == 0 {
		c.Engine.Cache.TTL = 600
	}
	if c.Engine.Cache.Redis.Addr == "" {
		c.Engine.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Engine.Cache.Redis.PoolSize == 0 {
		c.Engine.Cache.Redis.PoolSize = 10
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./data/quantdesk.db"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "error"
	}

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 30
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 非法: %d", c.Server.Port)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers 不能为负数: %d", c.Engine.Workers)
	}
	if c.Engine.RequestTimeout < 1 {
		return fmt.Errorf("engine.request_timeout 必须大于 0: %d", c.Engine.RequestTimeout)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RPS <= 0 {
		return fmt.Errorf("server.rate_limit.rps 必须大于 0: %v", c.Server.RateLimit.RPS)
	}

	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.type 不支持: %s", c.Database.Type)
	}

	if c.Engine.Cache.Enabled && c.Engine.Cache.Type != "redis" {
		return fmt.Errorf("engine.cache.type 不支持: %s", c.Engine.Cache.Type)
	}
	return nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
