// Package app 负责依赖构建，按配置组装存储、账本、生成客户端与编排器
package app

import (
	"context"
	"fmt"

	"schoolgenius-seeder/internal/application/ledger"
	"schoolgenius-seeder/internal/application/seeding"
	"schoolgenius-seeder/internal/application/seeding/catalog"
	"schoolgenius-seeder/internal/config"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/internal/infrastructure/llm"
	"schoolgenius-seeder/internal/infrastructure/persistence/filestore"
	"schoolgenius-seeder/internal/infrastructure/persistence/memory"
	"schoolgenius-seeder/internal/infrastructure/persistence/postgres"
	"schoolgenius-seeder/internal/infrastructure/persistence/redis"
	"schoolgenius-seeder/internal/infrastructure/persistence/sqlite"
	"schoolgenius-seeder/internal/workflow/prompt"
	apperrors "schoolgenius-seeder/pkg/errors"
	"schoolgenius-seeder/pkg/logger"
)

// App 一次进程运行所需的全部组件
type App struct {
	Config       *config.Config
	Jobs         []*seeding.JobDescriptor
	Content      repository.ContentStore
	Documents    repository.DocumentStore
	Ledger       *ledger.Ledger
	Orchestrator *seeding.Orchestrator

	checks []namedCheck
}

// Options 构建时的可选注入，测试用
type Options struct {
	Generators seeding.GeneratorSource
	Content    repository.ContentStore
	Documents  repository.DocumentStore
	Governor   seeding.Governor
	Sink       seeding.ProgressSink
}

// Build 组装 App，返回的 cleanup 按构建的逆序释放资源
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	var redisClient *redis.Client
	needRedis := (cfg.Storage.StateBackend == "redis" && opts.Documents == nil) ||
		(cfg.Cache.Dedup.Enabled && opts.Content == nil)
	if needRedis {
		c, closeFn, err := ProvideRedisClient(cfg)
		if err != nil {
			return fail(err)
		}
		redisClient = c
		cleanups = append(cleanups, closeFn)
	}

	docs := opts.Documents
	if docs == nil {
		d, err := ProvideDocumentStore(cfg, redisClient)
		if err != nil {
			return fail(err)
		}
		docs = d
	}

	var checks []namedCheck
	if redisClient != nil {
		checks = append(checks, namedCheck{name: "redis", check: redisClient})
	}

	content := opts.Content
	if content == nil {
		c, closeFn, err := ProvideContentStore(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, closeFn)
		content = c
		if hc, ok := c.(HealthChecker); ok {
			driver := cfg.Storage.ContentDriver
			if driver == "" {
				driver = "sqlite"
			}
			checks = append(checks, namedCheck{name: driver, check: hc})
		}
		if cfg.Cache.Dedup.Enabled && redisClient != nil {
			content = redis.NewDedupCache(redisClient, content, cfg.Cache.Dedup.TTL)
		}
	}

	jobs, err := ProvideJobs(cfg)
	if err != nil {
		return fail(err)
	}

	l := ledger.New(docs, ledger.RatesFromConfig(cfg.Billing.Rates), cfg.Billing.MonthlyBudgetUSD)

	generators := opts.Generators
	if generators == nil {
		generators = llm.NewRouter(&cfg.LLM)
	}
	governor := opts.Governor
	if governor == nil {
		governor = seeding.NewFixedGovernor(cfg.Seeding.Delay)
	}

	runner := seeding.NewRunner(content, generators, l, governor, seeding.RunnerConfig{
		SystemInstruction: cfg.Seeding.SystemInstruction,
		DefaultProvider:   cfg.LLM.DefaultProvider,
	})
	orch, err := seeding.NewOrchestrator(jobs, runner, docs, l, seeding.OrchestratorConfig{
		BatchPause: cfg.Seeding.BatchPause,
		Sink:       opts.Sink,
	})
	if err != nil {
		return fail(err)
	}

	return &App{
		Config:       cfg,
		Jobs:         jobs,
		Content:      content,
		Documents:    docs,
		Ledger:       l,
		Orchestrator: orch,
		checks:       checks,
	}, cleanup, nil
}

// ProvideJobs 内置任务目录，按配置排序并应用按任务的提供商覆盖
func ProvideJobs(cfg *config.Config) ([]*seeding.JobDescriptor, error) {
	jobs, err := catalog.Ordered(catalog.All(prompt.NewRegistry()), cfg.Seeding.Jobs)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		j.Provider = cfg.Seeding.ProviderFor(j.Name, j.Provider)
	}
	return jobs, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	c, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to connect to redis")
	}
	return c, func() { _ = c.Close() }, nil
}

// ProvideDocumentStore 提供进度与账本文档存储
func ProvideDocumentStore(cfg *config.Config, redisClient *redis.Client) (repository.DocumentStore, error) {
	switch cfg.Storage.StateBackend {
	case "file", "":
		s, err := filestore.New(cfg.Storage.StateDir, filestore.WithLockStaleAfter(cfg.Storage.LockStaleAfter))
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to open state directory")
		}
		return s, nil
	case "redis":
		if redisClient == nil {
			return nil, apperrors.New(apperrors.CodeInvalidConfig, "redis state backend without redis client")
		}
		return redis.NewDocumentStore(redisClient), nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "unknown state backend %q", cfg.Storage.StateBackend)
	}
}

// ProvideContentStore 提供内容存储
func ProvideContentStore(ctx context.Context, cfg *config.Config) (repository.ContentStore, func(), error) {
	switch cfg.Storage.ContentDriver {
	case "memory":
		logger.Warn(ctx, "using in-memory content store, generated content will not be kept")
		return memory.NewContentStore(), func() {}, nil

	case "sqlite", "":
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to open sqlite content store")
		}
		return sqlite.NewContentRepository(db.DB), func() { _ = db.Close() }, nil

	case "postgres":
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to connect to postgres")
		}
		repo := postgres.NewContentRepository(client)
		if cfg.Database.Postgres.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				_ = client.Close()
				return nil, nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to migrate content schema")
			}
		}
		return repo, func() { _ = client.Close() }, nil

	default:
		return nil, nil, apperrors.Newf(apperrors.CodeInvalidConfig, "unknown content driver %q", cfg.Storage.ContentDriver)
	}
}

// Describe 返回用于启动日志的存储描述，不含凭据
func Describe(cfg *config.Config) string {
	return fmt.Sprintf("state=%s content=%s dedup_cache=%t", cfg.Storage.StateBackend, cfg.Storage.ContentDriver, cfg.Cache.Dedup.Enabled)
}
