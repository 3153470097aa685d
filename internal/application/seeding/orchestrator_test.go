package seeding

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/internal/domain/service"
	"schoolgenius-seeder/internal/infrastructure/persistence/memory"
	apperrors "schoolgenius-seeder/pkg/errors"
)

// failingJobRunner 对指定任务总是抛出 JobExecutionError
type failingJobRunner struct {
	inner   JobRunner
	failing string
	ran     []string
}

func (r *failingJobRunner) Run(ctx context.Context, d *JobDescriptor, sink ProgressSink) (*entity.JobResult, error) {
	r.ran = append(r.ran, d.Name)
	if d.Name == r.failing {
		return &entity.JobResult{Job: d.Name}, &JobExecutionError{Job: d.Name, Err: errors.New("store unreachable")}
	}
	return r.inner.Run(ctx, d, sink)
}

func loadState(t *testing.T, docs repository.DocumentStore) *entity.ProgressState {
	t.Helper()
	var st entity.ProgressState
	found, err := docs.Load(context.Background(), repository.DocumentProgress, &st)
	if err != nil || !found {
		t.Fatalf("load progress: found=%v err=%v", found, err)
	}
	return &st
}

func TestOrchestratorFailedJobDoesNotStopBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := testJob("A", []string{"k2", "grades35", "grades68"}, 2)
	b := testJob("B", []string{"k2"}, 2)
	c := testJob("C", []string{"k2"}, 1)
	runner := &failingJobRunner{inner: f.runner, failing: "B"}

	o, err := NewOrchestrator([]*JobDescriptor{a, b, c}, runner, f.docs, f.ledger, OrchestratorConfig{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	o.sleep = func(context.Context, time.Duration) error { return nil }

	report, err := o.Run(ctx, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.HasFailures() {
		t.Fatal("report has no failures")
	}
	if got := report.Failed(); len(got) != 1 || got[0].Name != "B" {
		t.Errorf("failed jobs = %+v", got)
	}
	if len(runner.ran) != 3 {
		t.Errorf("ran = %v, want A, B and C", runner.ran)
	}

	st := loadState(t, f.docs)
	if !st.IsCompleted("A") || !st.IsCompleted("C") {
		t.Errorf("completed = %+v", st.CompletedJobs)
	}
	if _, ok := st.Failed("B"); !ok {
		t.Errorf("failed = %+v", st.FailedJobs)
	}
	if st.CurrentJob != "" {
		t.Errorf("current job = %q after batch", st.CurrentJob)
	}
	if n, _ := f.store.Count(ctx, "A_table"); n != 6 {
		t.Errorf("A records = %d, want 6", n)
	}
	if st.ItemsGeneratedSoFar != 7 || st.TotalItemsTarget != 9 {
		t.Errorf("progress totals = %d/%d", st.ItemsGeneratedSoFar, st.TotalItemsTarget)
	}

	// 退出码: 有任务失败时非零
	if code := exitCodeFor(report, err); code == 0 {
		t.Error("exit code is zero with a failed job")
	}
}

func exitCodeFor(report *BatchReport, err error) int {
	if err != nil {
		return apperrors.ExitCode(err)
	}
	if report.HasFailures() {
		return 1
	}
	return 0
}

func TestOrchestratorSkipsCompletedJobsOnResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := testJob("A", []string{"k2"}, 2)
	b := testJob("B", []string{"k2"}, 2)
	runner := &failingJobRunner{inner: f.runner, failing: "B"}

	o, err := NewOrchestrator([]*JobDescriptor{a, b}, runner, f.docs, f.ledger, OrchestratorConfig{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	o.sleep = func(context.Context, time.Duration) error { return nil }
	if _, err := o.Run(ctx, ""); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	runner.failing = ""
	runner.ran = nil
	report, err := o.Run(ctx, "")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(runner.ran) != 1 || runner.ran[0] != "B" {
		t.Errorf("second run executed %v, want only B", runner.ran)
	}
	if report.Jobs[0].Status != StatusSkipped || report.Jobs[1].Status != StatusCompleted {
		t.Errorf("outcomes = %+v", report.Jobs)
	}
	if report.HasFailures() {
		t.Error("resume run reported failures")
	}
	st := loadState(t, f.docs)
	if len(st.FailedJobs) != 0 || len(st.CompletedJobs) != 2 {
		t.Errorf("state = %+v", st)
	}
}

func TestOrchestratorCrashResume(t *testing.T) {
	a := testJob("A", []string{"k2", "grades35", "grades68"}, 2)
	b := testJob("B", []string{"k2"}, 3)

	// 基线：一次不中断的运行
	baseline := newFixture()
	if _, err := baseline.orchestrator(a, b).Run(context.Background(), ""); err != nil {
		t.Fatalf("baseline: %v", err)
	}

	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.gen.fail = func(_ string, call int) error {
		if call == 4 {
			cancel()
			return &service.GenerationTransportError{Provider: stubProvider, Err: context.Canceled}
		}
		return nil
	}
	o := f.orchestrator(a, b)

	report, err := o.Run(ctx, "")
	if !apperrors.HasCode(err, apperrors.CodeInterrupted) {
		t.Fatalf("error = %v, want interrupted", err)
	}
	if !report.Interrupted {
		t.Error("report not marked interrupted")
	}
	st := loadState(t, f.docs)
	if st.CurrentJob != "A" {
		t.Fatalf("current job = %q, want A", st.CurrentJob)
	}
	if n, _ := f.store.Count(context.Background(), "A_table"); n != 3 {
		t.Fatalf("A records after interrupt = %d, want 3", n)
	}

	f.gen.fail = nil
	if _, err := o.Run(context.Background(), ""); err != nil {
		t.Fatalf("resume: %v", err)
	}

	for _, table := range []string{"A_table", "B_table"} {
		got, _ := f.store.Count(context.Background(), table)
		want, _ := baseline.store.Count(context.Background(), table)
		if got != want {
			t.Errorf("%s: records = %d, want %d", table, got, want)
		}
	}
	// 4 次调用在中断前 (第 4 次未落库)，恢复后补 3 条 A 与 3 条 B
	if f.gen.Calls() != 10 {
		t.Errorf("provider calls = %d, want 10", f.gen.Calls())
	}
	st = loadState(t, f.docs)
	if st.CurrentJob != "" || len(st.CompletedJobs) != 2 {
		t.Errorf("final state = %+v", st)
	}
}

func TestOrchestratorOnlyRerunsNamedJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := testJob("A", []string{"k2"}, 2)
	b := testJob("B", []string{"k2"}, 2)
	o := f.orchestrator(a, b)

	if _, err := o.Run(ctx, ""); err != nil {
		t.Fatalf("Run: %v", err)
	}
	report, err := o.Run(ctx, "A")
	if err != nil {
		t.Fatalf("Run A: %v", err)
	}
	if len(report.Jobs) != 1 || report.Jobs[0].Name != "A" || report.Jobs[0].Status != StatusCompleted {
		t.Fatalf("jobs = %+v", report.Jobs)
	}
	if report.Jobs[0].Result.ItemsSkipped != 2 {
		t.Errorf("rerun result = %+v", report.Jobs[0].Result)
	}
	st := loadState(t, f.docs)
	if len(st.CompletedJobs) != 2 {
		t.Errorf("completed entries = %d, want 2 (replaced, not duplicated)", len(st.CompletedJobs))
	}

	if _, err := o.Run(ctx, "nope"); !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("unknown job error = %v", err)
	}
}

type readOnlyDocs struct{ *memory.DocumentStore }

func (readOnlyDocs) Save(context.Context, string, any) error { return errors.New("permission denied") }

func TestOrchestratorProgressStoreFailureIsFatal(t *testing.T) {
	f := newFixture()
	runner := &failingJobRunner{inner: f.runner}
	o, err := NewOrchestrator([]*JobDescriptor{testJob("A", []string{"k2"}, 1)}, runner,
		readOnlyDocs{memory.NewDocumentStore()}, f.ledger, OrchestratorConfig{})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	_, err = o.Run(context.Background(), "")
	if !apperrors.HasCode(err, apperrors.CodeOrchestratorFatal) {
		t.Fatalf("error = %v, want orchestrator fatal", err)
	}
	var fatalErr *OrchestratorFatalError
	if !errors.As(err, &fatalErr) {
		t.Errorf("error chain lacks OrchestratorFatalError: %v", err)
	}
	if len(runner.ran) != 0 {
		t.Errorf("jobs ran without durable progress: %v", runner.ran)
	}
	if apperrors.ExitCode(err) != 2 {
		t.Errorf("exit code = %d, want 2", apperrors.ExitCode(err))
	}
}

func TestOrchestratorLedgerFailureAbortsBatch(t *testing.T) {
	f := newFixture()
	f.runner.costs = failingCosts{}
	o := f.orchestrator(testJob("A", []string{"k2"}, 2), testJob("B", []string{"k2"}, 2))

	report, err := o.Run(context.Background(), "")
	if !apperrors.HasCode(err, apperrors.CodeOrchestratorFatal) {
		t.Fatalf("error = %v, want orchestrator fatal", err)
	}
	if len(report.Jobs) != 1 {
		t.Errorf("jobs attempted = %d, want 1", len(report.Jobs))
	}
}

func TestOrchestratorRejectsConcurrentRun(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(testJob("A", []string{"k2"}, 1))

	release, err := f.docs.Lock(context.Background(), repository.LockRun)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = release() }()

	if _, err := o.Run(context.Background(), ""); !apperrors.HasCode(err, apperrors.CodeRunLocked) {
		t.Errorf("error = %v, want run locked", err)
	}
}

func TestOrchestratorInitStatusReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.orchestrator(testJob("A", []string{"k2"}, 3))

	created, err := o.Init(ctx)
	if err != nil || !created {
		t.Fatalf("Init: created=%v err=%v", created, err)
	}
	if created, _ := o.Init(ctx); created {
		t.Error("second Init recreated progress")
	}
	st, found, err := o.Status(ctx)
	if err != nil || !found {
		t.Fatalf("Status: found=%v err=%v", found, err)
	}
	if st.TotalItemsTarget != 3 {
		t.Errorf("target = %d, want 3", st.TotalItemsTarget)
	}

	if err := o.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, found, _ := o.Status(ctx); found {
		t.Error("progress still present after reset")
	}
}

func TestNewOrchestratorRejectsDuplicateNames(t *testing.T) {
	f := newFixture()
	_, err := NewOrchestrator([]*JobDescriptor{testJob("A", []string{"k2"}, 1), testJob("A", []string{"k2"}, 1)},
		f.runner, f.docs, f.ledger, OrchestratorConfig{})
	if !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("error = %v, want invalid config", err)
	}
}
