package seeding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/internal/domain/service"
	"schoolgenius-seeder/pkg/logger"
	"schoolgenius-seeder/pkg/metrics"
	"schoolgenius-seeder/pkg/tracer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxRecordedFailures 每个任务结果中保留的失败明细上限
const maxRecordedFailures = 50

// ItemOutcome 单个元组的处理结果
type ItemOutcome string

const (
	OutcomeSucceeded ItemOutcome = "succeeded"
	OutcomeSkipped   ItemOutcome = "skipped"
	OutcomeFailed    ItemOutcome = "failed"
)

// ItemEvent 条目级进度事件
type ItemEvent struct {
	Job     string
	Index   int
	Total   int
	Key     string
	Tuple   entity.Tuple
	Outcome ItemOutcome
	CostUSD float64
	Err     error
}

// ProgressSink 接收条目级进度
type ProgressSink interface {
	OnItem(ctx context.Context, ev ItemEvent)
}

// SinkFunc 函数适配器
type SinkFunc func(ctx context.Context, ev ItemEvent)

// OnItem 实现 ProgressSink
func (f SinkFunc) OnItem(ctx context.Context, ev ItemEvent) { f(ctx, ev) }

type nopSink struct{}

func (nopSink) OnItem(context.Context, ItemEvent) {}

// GeneratorSource 按提供商名称获取生成客户端
type GeneratorSource interface {
	Generator(ctx context.Context, provider string) (service.Generator, error)
}

// RunnerConfig 任务执行参数
type RunnerConfig struct {
	SystemInstruction string
	DefaultProvider   string
}

// Runner 执行单个任务：枚举、查重、生成、校验、写入、记账、节流
type Runner struct {
	store      repository.ContentStore
	generators GeneratorSource
	costs      service.CostRecorder
	governor   Governor
	cfg        RunnerConfig
	now        func() time.Time
	newID      func() string
}

// NewRunner 创建任务执行器
func NewRunner(
	store repository.ContentStore,
	generators GeneratorSource,
	costs service.CostRecorder,
	governor Governor,
	cfg RunnerConfig,
) *Runner {
	return &Runner{
		store:      store,
		generators: generators,
		costs:      costs,
		governor:   governor,
		cfg:        cfg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run 执行任务。
// 单条失败只计数；去重键配置错误和内容存储故障返回 JobExecutionError；
// 账本落盘失败返回 OrchestratorFatalError；context 取消时原样返回 ctx.Err()。
func (r *Runner) Run(ctx context.Context, d *JobDescriptor, sink ProgressSink) (result *entity.JobResult, err error) {
	ctx, span := tracer.Start(ctx, "job.Run", trace.WithAttributes(attribute.String("job", d.Name)))
	defer func() { tracer.End(span, err) }()
	ctx = logger.WithContext(ctx, logger.JobKey, d.Name)

	if sink == nil {
		sink = nopSink{}
	}
	start := r.now()
	result = &entity.JobResult{Job: d.Name}
	defer func() { result.Duration = r.now().Sub(start) }()

	jobFailed := func(cause error) error {
		return &JobExecutionError{Job: d.Name, Partial: result, Err: cause}
	}

	keys, err := d.KeyBuilder()
	if err != nil {
		return result, jobFailed(err)
	}
	provider := d.Provider
	if provider == "" {
		provider = r.cfg.DefaultProvider
	}
	gen, err := r.generators.Generator(ctx, provider)
	if err != nil {
		return result, jobFailed(err)
	}

	tuples := d.Enumerate()
	logger.Info(ctx, "job started", "items", len(tuples), "provider", provider, "table", d.TargetTable)

	called := false
	for i, tuple := range tuples {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		key, err := keys.Key(tuple)
		if err != nil {
			return result, jobFailed(err)
		}
		ev := ItemEvent{Job: d.Name, Index: i, Total: len(tuples), Key: key, Tuple: tuple}

		exists, err := r.store.Exists(ctx, d.TargetTable, key)
		if err != nil {
			return result, jobFailed(fmt.Errorf("existence check for %s: %w", key, err))
		}
		if exists {
			result.ItemsSkipped++
			ev.Outcome = OutcomeSkipped
			r.emit(ctx, sink, ev)
			continue
		}

		if called {
			if err := r.governor.Wait(ctx); err != nil {
				return result, err
			}
		}
		called = true

		outcome, cost, itemErr, err := r.generateItem(ctx, d, gen, provider, tuple, key)
		result.CostUSD += cost
		if err != nil {
			var jobErr *JobExecutionError
			if errors.As(err, &jobErr) && jobErr.Partial == nil {
				jobErr.Partial = result
			}
			return result, err
		}

		ev.Outcome, ev.CostUSD, ev.Err = outcome, cost, itemErr
		switch outcome {
		case OutcomeSucceeded:
			result.ItemsSucceeded++
		case OutcomeSkipped:
			result.ItemsSkipped++
		case OutcomeFailed:
			result.ItemsFailed++
			if len(result.Failures) < maxRecordedFailures {
				result.Failures = append(result.Failures, entity.ItemFailure{
					DedupKey: key,
					Params:   tuple.String(),
					Class:    failureClass(itemErr),
					Message:  itemErr.Error(),
				})
			}
		}
		r.emit(ctx, sink, ev)
	}

	logger.Info(ctx, "job finished",
		"succeeded", result.ItemsSucceeded,
		"skipped", result.ItemsSkipped,
		"failed", result.ItemsFailed,
		"cost_usd", result.CostUSD,
	)
	return result, nil
}

// generateItem 处理一个缺失的元组。
// itemErr 为单条失败；err 为需要终止任务或批次的错误。
func (r *Runner) generateItem(
	ctx context.Context,
	d *JobDescriptor,
	gen service.Generator,
	provider string,
	tuple entity.Tuple,
	key string,
) (outcome ItemOutcome, cost float64, itemErr error, err error) {
	ctx, span := tracer.Start(ctx, "job.item", trace.WithAttributes(attribute.String("dedup_key", key)))
	defer func() { tracer.End(span, err) }()

	prompt, perr := d.Prompt(ctx, tuple)
	if perr != nil {
		return OutcomeFailed, 0, fmt.Errorf("render prompt: %w", perr), nil
	}

	started := time.Now()
	out, gerr := gen.Generate(ctx, service.GenerateRequest{
		SystemInstruction: r.cfg.SystemInstruction,
		Prompt:            prompt,
	})
	metrics.RecordProviderCall(provider, time.Since(started), gerr)
	if gerr != nil {
		if ctx.Err() != nil {
			return OutcomeFailed, 0, nil, ctx.Err()
		}
		var parseErr *service.GenerationParseError
		if errors.As(gerr, &parseErr) {
			// 响应已计费，即使无法解析也要记账
			cost, err = r.record(ctx, provider, parseErr.Usage)
			if err != nil {
				return OutcomeFailed, cost, nil, err
			}
		}
		return OutcomeFailed, cost, gerr, nil
	}

	cost, err = r.record(ctx, provider, out.Usage)
	if err != nil {
		return OutcomeFailed, cost, nil, err
	}

	payload, verr := d.Schema.Validate(out.Output)
	if verr != nil {
		return OutcomeFailed, cost, verr, nil
	}

	record := &entity.ContentRecord{
		ID:             r.newID(),
		Job:            d.Name,
		TargetTable:    d.TargetTable,
		DedupKey:       key,
		Params:         tuple,
		IdentityFields: d.IdentityFields,
		Payload:        payload,
		Provider:       provider,
		Model:          out.Model,
		CostUSD:        cost,
		CreatedAt:      r.now().UTC(),
	}
	if ierr := r.store.Insert(ctx, record); ierr != nil {
		if errors.Is(ierr, repository.ErrDuplicateKey) {
			logger.Debug(ctx, "record appeared concurrently, counting as skipped", "dedup_key", key)
			return OutcomeSkipped, cost, nil, nil
		}
		return OutcomeFailed, cost, nil, &JobExecutionError{Job: d.Name, Err: fmt.Errorf("insert %s: %w", key, ierr)}
	}
	return OutcomeSucceeded, cost, nil, nil
}

func (r *Runner) record(ctx context.Context, provider string, usage service.Usage) (float64, error) {
	cost, err := r.costs.Record(ctx, provider, usage)
	if err != nil {
		return cost, &OrchestratorFatalError{Op: "persist cost ledger", Err: err}
	}
	return cost, nil
}

func (r *Runner) emit(ctx context.Context, sink ProgressSink, ev ItemEvent) {
	metrics.RecordItem(ev.Job, string(ev.Outcome))
	switch ev.Outcome {
	case OutcomeFailed:
		logger.Warn(ctx, "item failed",
			"dedup_key", ev.Key,
			"params", ev.Tuple.String(),
			"class", failureClass(ev.Err),
			"error", ev.Err.Error(),
		)
	default:
		logger.Debug(ctx, "item "+string(ev.Outcome), "dedup_key", ev.Key, "index", ev.Index, "cost_usd", ev.CostUSD)
	}
	sink.OnItem(ctx, ev)
}

func failureClass(err error) string {
	var (
		parseErr     *service.GenerationParseError
		transportErr *service.GenerationTransportError
		schemaErr    *SchemaValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &schemaErr):
		return "schema"
	default:
		return "other"
	}
}
