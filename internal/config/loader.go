// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	apperrors "schoolgenius-seeder/pkg/errors"

	"github.com/spf13/viper"
)

const defaultConfigPath = "configs/config.yaml"

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	path := os.Getenv("SEEDER_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	return LoadFrom(path)
}

// LoadFrom 从指定路径加载配置
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, path, false); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置 (同目录 config.<env>.yaml)
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(filepath.Dir(path), fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidConfig, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return apperrors.Wrap(err, apperrors.CodeInvalidConfig, "failed to read config file "+path)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidConfig, "failed to read processed config "+path)
		}
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidConfig, "failed to merge processed config "+path)
		}
	}
	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		// 保留原样以便识别未定义的变量
		return match
	})
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "schoolgenius-seeder")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("storage.state_backend", "file")
	v.SetDefault("storage.state_dir", ".seeding")
	v.SetDefault("storage.lock_stale_after", "24h")
	v.SetDefault("storage.content_driver", "sqlite")
	v.SetDefault("storage.sqlite_path", ".seeding/content.db")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "schoolgenius")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 5)
	v.SetDefault("database.postgres.max_idle_conns", 2)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")
	v.SetDefault("database.postgres.auto_migrate", true)

	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "seeder")
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.redis.min_idle_conns", 1)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")
	v.SetDefault("cache.dedup.enabled", false)
	v.SetDefault("cache.dedup.ttl", "168h")

	v.SetDefault("llm.default_provider", "grok")

	v.SetDefault("billing.monthly_budget_usd", 50.0)

	v.SetDefault("seeding.delay", "5s")
	v.SetDefault("seeding.batch_pause", "5s")
	v.SetDefault("seeding.system_instruction",
		"You are a helpful assistant that generates educational content for children. Return only valid JSON without markdown formatting.")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", false)
	v.SetDefault("observability.metrics.port", 9464)
	v.SetDefault("observability.metrics.path", "/metrics")
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	switch c.Storage.StateBackend {
	case "file", "redis":
	default:
		return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown storage.state_backend %q", c.Storage.StateBackend)
	}
	switch c.Storage.ContentDriver {
	case "memory", "sqlite", "postgres":
	default:
		return apperrors.Newf(apperrors.CodeInvalidConfig, "unknown storage.content_driver %q", c.Storage.ContentDriver)
	}
	if c.Seeding.Delay < 0 || c.Seeding.BatchPause < 0 {
		return apperrors.New(apperrors.CodeInvalidConfig, "seeding delays must not be negative")
	}
	if c.Billing.MonthlyBudgetUSD < 0 {
		return apperrors.New(apperrors.CodeInvalidConfig, "billing.monthly_budget_usd must not be negative")
	}

	providers := map[string]struct{}{c.LLM.DefaultProvider: {}}
	for _, p := range c.Seeding.JobProviders {
		providers[p] = struct{}{}
	}
	for name := range providers {
		p, ok := c.LLM.Providers[name]
		if !ok {
			return apperrors.Newf(apperrors.CodeInvalidConfig, "llm provider %q is not configured", name)
		}
		if p.Timeout <= 0 {
			return apperrors.Newf(apperrors.CodeInvalidConfig, "llm provider %q needs a positive timeout", name)
		}
		switch p.Kind {
		case "openai", "anthropic":
		default:
			return apperrors.Newf(apperrors.CodeInvalidConfig, "llm provider %q has unknown kind %q", name, p.Kind)
		}
		if _, ok := c.Billing.Rates[name]; !ok {
			return apperrors.Newf(apperrors.CodeInvalidConfig, "billing rate for provider %q is missing", name)
		}
	}
	return nil
}
