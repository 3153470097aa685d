package seeding

import (
	"context"
	"errors"
	"time"

	"schoolgenius-seeder/internal/application/ledger"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	apperrors "schoolgenius-seeder/pkg/errors"
	"schoolgenius-seeder/pkg/logger"
	"schoolgenius-seeder/pkg/metrics"
	"schoolgenius-seeder/pkg/tracer"

	"github.com/google/uuid"
)

// JobRunner 执行单个任务
type JobRunner interface {
	Run(ctx context.Context, d *JobDescriptor, sink ProgressSink) (*entity.JobResult, error)
}

// CostReporter 提供账本报表
type CostReporter interface {
	Report(ctx context.Context) (*ledger.CostReport, error)
}

// OrchestratorConfig 编排参数
type OrchestratorConfig struct {
	// BatchPause 两个任务之间的停顿
	BatchPause time.Duration
	Sink       ProgressSink
}

// Orchestrator 按固定顺序运行任务并持久化跨运行进度
type Orchestrator struct {
	jobs   []*JobDescriptor
	runner JobRunner
	state  repository.DocumentStore
	costs  CostReporter
	cfg    OrchestratorConfig

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

// NewOrchestrator 创建编排器，任务名必须唯一
func NewOrchestrator(
	jobs []*JobDescriptor,
	runner JobRunner,
	state repository.DocumentStore,
	costs CostReporter,
	cfg OrchestratorConfig,
) (*Orchestrator, error) {
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[j.Name]; dup {
			return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "duplicate job name %q", j.Name)
		}
		seen[j.Name] = struct{}{}
	}
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	return &Orchestrator{
		jobs:     jobs,
		runner:   runner,
		state:    state,
		costs:    costs,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleep,
		newRunID: uuid.NewString,
	}, nil
}

// Jobs 返回按执行顺序排列的任务
func (o *Orchestrator) Jobs() []*JobDescriptor {
	return append([]*JobDescriptor(nil), o.jobs...)
}

// Init 进度文档不存在时创建空进度
func (o *Orchestrator) Init(ctx context.Context) (bool, error) {
	var st entity.ProgressState
	found, err := o.state.Load(ctx, repository.DocumentProgress, &st)
	if err != nil {
		return false, fatal("load progress state", err)
	}
	if found {
		return false, nil
	}
	fresh := entity.NewProgressState(o.now().UTC())
	o.applyTargets(fresh)
	if err := o.save(ctx, fresh); err != nil {
		return false, err
	}
	return true, nil
}

// Status 读取当前进度
func (o *Orchestrator) Status(ctx context.Context) (*entity.ProgressState, bool, error) {
	st := &entity.ProgressState{}
	found, err := o.state.Load(ctx, repository.DocumentProgress, st)
	if err != nil {
		return nil, false, fatal("load progress state", err)
	}
	return st, found, nil
}

// Reset 删除进度文档，账本不受影响
func (o *Orchestrator) Reset(ctx context.Context) error {
	release, err := o.lock(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	if err := o.state.Delete(ctx, repository.DocumentProgress); err != nil {
		return fatal("delete progress state", err)
	}
	return nil
}

// Run 运行所有未完成任务；only 非空时只运行该任务，即使它已完成。
// 任务失败不会中止批次，通过 BatchReport.HasFailures 体现；
// 返回错误表示批次无法继续 (进度/账本存储故障、被中断或配置错误)。
func (o *Orchestrator) Run(ctx context.Context, only string) (report *BatchReport, err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Run")
	defer func() { tracer.End(span, err) }()

	runID := o.newRunID()
	ctx = logger.WithContext(ctx, logger.RunIDKey, runID)

	pending, err := o.selectJobs(only)
	if err != nil {
		return nil, err
	}

	release, err := o.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logger.Warn(ctx, "failed to release run lock", "error", rerr.Error())
		}
	}()

	st, found, err := o.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		st = entity.NewProgressState(o.now().UTC())
	}
	if st.CompletedJobs == nil {
		st.CompletedJobs = []entity.CompletedJob{}
	}
	if st.FailedJobs == nil {
		st.FailedJobs = []entity.FailedJob{}
	}
	if st.CurrentJob != "" {
		logger.Warn(ctx, "previous run was interrupted mid-job, it will be re-run", "interrupted_job", st.CurrentJob)
	}
	o.applyTargets(st)

	report = &BatchReport{
		RunID:       runID,
		StartedAt:   o.now().UTC(),
		ItemsTarget: st.TotalItemsTarget,
		CostTarget:  st.TotalCostTarget,
	}

	ran := 0
	for _, d := range pending {
		if only == "" && st.IsCompleted(d.Name) {
			report.Jobs = append(report.Jobs, JobOutcome{Name: d.Name, Status: StatusSkipped})
			logger.Info(ctx, "job already completed, skipping", "job", d.Name)
			continue
		}

		if ran > 0 {
			if err := o.sleep(ctx, o.cfg.BatchPause); err != nil {
				return o.interrupted(ctx, st, report, err)
			}
		}
		ran++

		st.MarkStarted(d.Name, o.now().UTC())
		if err := o.save(ctx, st); err != nil {
			return o.finish(ctx, report, st), err
		}
		metrics.CurrentJob.WithLabelValues(d.Name).Set(1)

		started := o.now()
		result, runErr := o.runner.Run(ctx, d, o.cfg.Sink)
		metrics.CurrentJob.WithLabelValues(d.Name).Set(0)
		elapsed := o.now().Sub(started)
		metrics.JobDuration.WithLabelValues(d.Name).Observe(elapsed.Seconds())

		outcome := JobOutcome{Name: d.Name, Result: result, Duration: elapsed}
		if result != nil {
			report.ItemsGenerated += result.ItemsSucceeded
			report.CostSpent += result.CostUSD
		}

		switch {
		case runErr == nil:
			outcome.Status = StatusCompleted
			st.MarkCompleted(entity.CompletedJob{
				Name:            d.Name,
				ItemsGenerated:  result.ItemsSucceeded,
				ItemsSkipped:    result.ItemsSkipped,
				ItemsFailed:     result.ItemsFailed,
				CostUSD:         result.CostUSD,
				DurationMinutes: elapsed.Minutes(),
				CompletedAt:     o.now().UTC(),
			})
			metrics.JobsTotal.WithLabelValues(string(StatusCompleted)).Inc()

		case isFatal(runErr):
			outcome.Status = StatusFailed
			outcome.Error = runErr.Error()
			report.Jobs = append(report.Jobs, outcome)
			logger.Error(ctx, "batch aborted", runErr, "job", d.Name)
			return o.finish(ctx, report, st), apperrors.Wrap(runErr, apperrors.CodeOrchestratorFatal, "batch aborted")

		case ctx.Err() != nil:
			outcome.Status = StatusInterrupted
			report.Jobs = append(report.Jobs, outcome)
			return o.interrupted(ctx, st, report, ctx.Err())

		default:
			outcome.Status = StatusFailed
			outcome.Error = runErr.Error()
			var partialItems int
			var partialCost float64
			if result != nil {
				partialItems, partialCost = result.ItemsSucceeded, result.CostUSD
			}
			st.MarkFailed(entity.FailedJob{
				Name:     d.Name,
				Error:    runErr.Error(),
				FailedAt: o.now().UTC(),
			}, partialItems, partialCost)
			metrics.JobsTotal.WithLabelValues(string(StatusFailed)).Inc()
			logger.Error(ctx, "job failed, continuing with next job", runErr, "job", d.Name)
		}

		report.Jobs = append(report.Jobs, outcome)
		if err := o.save(ctx, st); err != nil {
			return o.finish(ctx, report, st), err
		}
	}

	st.ClearCurrent(o.now().UTC())
	if err := o.save(ctx, st); err != nil {
		return o.finish(ctx, report, st), err
	}
	return o.finish(ctx, report, st), nil
}

func (o *Orchestrator) selectJobs(only string) ([]*JobDescriptor, error) {
	if only == "" {
		return o.jobs, nil
	}
	for _, d := range o.jobs {
		if d.Name == only {
			return []*JobDescriptor{d}, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeInvalidConfig, "unknown job %q", only)
}

func (o *Orchestrator) applyTargets(st *entity.ProgressState) {
	st.TotalItemsTarget = 0
	st.TotalCostTarget = 0
	for _, d := range o.jobs {
		st.TotalItemsTarget += d.EstimatedItems
		st.TotalCostTarget += d.EstimatedCostUSD()
	}
}

func (o *Orchestrator) lock(ctx context.Context) (func() error, error) {
	release, err := o.state.Lock(ctx, repository.LockRun)
	if err != nil {
		if errors.Is(err, repository.ErrLocked) {
			return nil, apperrors.Wrap(err, apperrors.CodeRunLocked, "another seeding run holds the state lock")
		}
		return nil, fatal("acquire run lock", err)
	}
	return release, nil
}

// interrupted 保留 CurrentJob 并落盘，下次运行会重跑该任务
func (o *Orchestrator) interrupted(ctx context.Context, st *entity.ProgressState, report *BatchReport, cause error) (*BatchReport, error) {
	report.Interrupted = true
	if err := o.save(ctx, st); err != nil {
		return o.finish(ctx, report, st), err
	}
	logger.Warn(ctx, "batch interrupted", "current_job", st.CurrentJob)
	return o.finish(ctx, report, st), apperrors.Wrap(cause, apperrors.CodeInterrupted, "batch interrupted")
}

func (o *Orchestrator) finish(ctx context.Context, report *BatchReport, st *entity.ProgressState) *BatchReport {
	report.FinishedAt = o.now().UTC()
	report.ItemsGeneratedTotal = st.ItemsGeneratedSoFar
	report.CostSpentTotal = st.CostSpentSoFar
	if o.costs != nil {
		costs, err := o.costs.Report(context.WithoutCancel(ctx))
		if err != nil {
			logger.Error(ctx, "failed to build cost report", err)
		} else {
			report.Costs = costs
		}
	}
	return report
}

func (o *Orchestrator) save(ctx context.Context, st *entity.ProgressState) error {
	// 中断后仍需把断点写完
	if err := o.state.Save(context.WithoutCancel(ctx), repository.DocumentProgress, st); err != nil {
		return fatal("persist progress state", err)
	}
	return nil
}

func fatal(op string, err error) error {
	return apperrors.Wrap(&OrchestratorFatalError{Op: op, Err: err}, apperrors.CodeOrchestratorFatal, "cannot "+op)
}

func isFatal(err error) bool {
	var f *OrchestratorFatalError
	return errors.As(err, &f)
}
