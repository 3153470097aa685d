// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Billing       BillingConfig       `yaml:"billing" mapstructure:"billing"`
	Seeding       SeedingConfig       `yaml:"seeding" mapstructure:"seeding"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// StorageConfig 状态文档与内容存储配置
type StorageConfig struct {
	// StateBackend 进度与账本文档后端: file | redis
	StateBackend string `yaml:"state_backend" mapstructure:"state_backend"`
	// StateDir file 后端的目录
	StateDir string `yaml:"state_dir" mapstructure:"state_dir"`
	// LockStaleAfter 其他主机留下的运行锁超过该时长后可被接管，0 表示从不
	LockStaleAfter time.Duration `yaml:"lock_stale_after" mapstructure:"lock_stale_after"`
	// ContentDriver 内容存储: memory | sqlite | postgres
	ContentDriver string `yaml:"content_driver" mapstructure:"content_driver"`
	// SQLitePath sqlite 驱动的 DSN
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Dedup DedupCacheConfig `yaml:"dedup" mapstructure:"dedup"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	KeyPrefix    string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// DedupCacheConfig 去重存在性缓存配置
type DedupCacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMConfig 生成服务配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig 生成服务提供商配置
type ProviderConfig struct {
	// Kind 协议类型: openai (OpenAI 兼容接口) | anthropic
	Kind        string        `yaml:"kind" mapstructure:"kind"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BillingConfig 计费配置
type BillingConfig struct {
	MonthlyBudgetUSD float64               `yaml:"monthly_budget_usd" mapstructure:"monthly_budget_usd"`
	Rates            map[string]RateConfig `yaml:"rates" mapstructure:"rates"`
}

// RateConfig 单个提供商的费率
// 单位费率按每百万单位计价，单位由 Unit 决定 (tokens | characters)
type RateConfig struct {
	Unit                string  `yaml:"unit" mapstructure:"unit"`
	PerRequestUSD       float64 `yaml:"per_request_usd" mapstructure:"per_request_usd"`
	InputPerMillionUSD  float64 `yaml:"input_per_million_usd" mapstructure:"input_per_million_usd"`
	OutputPerMillionUSD float64 `yaml:"output_per_million_usd" mapstructure:"output_per_million_usd"`
	FreeRequestsPerDay  int     `yaml:"free_requests_per_day" mapstructure:"free_requests_per_day"`
}

// SeedingConfig 批处理配置
type SeedingConfig struct {
	// Delay 同一任务内两次生成调用的固定间隔
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`
	// BatchPause 两个任务之间的停顿
	BatchPause        time.Duration     `yaml:"batch_pause" mapstructure:"batch_pause"`
	SystemInstruction string            `yaml:"system_instruction" mapstructure:"system_instruction"`
	Jobs              []string          `yaml:"jobs" mapstructure:"jobs"`
	JobProviders      map[string]string `yaml:"job_providers" mapstructure:"job_providers"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// ProviderFor 返回任务使用的提供商名称
func (c *SeedingConfig) ProviderFor(job, fallback string) string {
	if p, ok := c.JobProviders[job]; ok && p != "" {
		return p
	}
	return fallback
}
