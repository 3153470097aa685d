package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"schoolgenius-seeder/internal/app"
	"schoolgenius-seeder/internal/application/seeding"
	apperrors "schoolgenius-seeder/pkg/errors"
	"schoolgenius-seeder/pkg/logger"
	"schoolgenius-seeder/pkg/metrics"
)

func runInit(ctx context.Context, env Env, args []string) error {
	fs := newFlagSet("init", env.out())
	if handled, err := parseFlags(fs, args); handled {
		return err
	}

	a, cleanup, err := app.Build(ctx, env.Config, env.Options)
	if err != nil {
		return err
	}
	defer cleanup()

	w := env.out()
	created, err := a.Orchestrator.Init(ctx)
	if err != nil {
		return err
	}
	printCreated(w, "progress state", created)

	created, err = a.Ledger.Init(ctx)
	if err != nil {
		return err
	}
	printCreated(w, "cost ledger", created)
	return nil
}

func runReport(ctx context.Context, env Env, args []string) error {
	fs := newFlagSet("report", env.out())
	asJSON := fs.Bool("json", false, "print JSON output")
	if handled, err := parseFlags(fs, args); handled {
		return err
	}

	a, cleanup, err := app.Build(ctx, env.Config, env.Options)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := a.Ledger.Report(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(env.out(), report)
	}
	renderCostReport(env.out(), report)
	return nil
}

func runBatch(ctx context.Context, env Env, args []string) error {
	w := env.out()
	fs := newFlagSet("run", w)
	job := fs.String("job", "", "run only this job, even if it already completed")
	asJSON := fs.Bool("json", false, "print the batch report as JSON")
	quiet := fs.Bool("quiet", false, "do not print per-item progress")
	if handled, err := parseFlags(fs, args); handled {
		return err
	}

	opts := env.Options
	if opts.Sink == nil && !*asJSON && !*quiet {
		opts.Sink = progressPrinter(w)
	}
	a, cleanup, err := app.Build(ctx, env.Config, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if m := env.Config.Observability.Metrics; m.Enabled {
		shutdown := metrics.Serve(m.Port, m.Path)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	if !*asJSON {
		renderPlan(w, selectedJobs(a.Jobs, *job), env.Config.LLM.DefaultProvider)
	}

	report, runErr := a.Orchestrator.Run(ctx, *job)
	if report != nil {
		if *asJSON {
			if err := printJSON(w, report); err != nil && runErr == nil {
				runErr = err
			}
		} else {
			renderBatchReport(w, report)
		}
	}
	if runErr != nil {
		logger.Error(ctx, "batch stopped", runErr)
		return runErr
	}
	if report.HasFailures() {
		return apperrors.Newf(apperrors.CodeJobExecution, "%d job(s) failed", len(report.Failed()))
	}
	return nil
}

func runJobs(env Env, args []string) error {
	fs := newFlagSet("jobs", env.out())
	asJSON := fs.Bool("json", false, "print JSON output")
	if handled, err := parseFlags(fs, args); handled {
		return err
	}

	jobs, err := app.ProvideJobs(env.Config)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(env.out(), planView(jobs, env.Config.LLM.DefaultProvider))
	}
	renderPlan(env.out(), jobs, env.Config.LLM.DefaultProvider)
	return nil
}

func runStatus(ctx context.Context, env Env, args []string) error {
	fs := newFlagSet("status", env.out())
	asJSON := fs.Bool("json", false, "print JSON output")
	if handled, err := parseFlags(fs, args); handled {
		return err
	}

	a, cleanup, err := app.Build(ctx, env.Config, env.Options)
	if err != nil {
		return err
	}
	defer cleanup()

	st, found, err := a.Orchestrator.Status(ctx)
	if err != nil {
		return err
	}
	counts, err := a.RecordCounts(ctx)
	if err != nil {
		return err
	}
	health := a.Health(ctx)

	if *asJSON {
		view := statusView{Found: found, Records: counts, Backends: health}
		if found {
			view.Progress = st
		}
		return printJSON(env.out(), view)
	}
	if found {
		renderStatus(env.out(), st, a.Jobs)
	} else {
		fmt.Fprintln(env.out(), mutedStyle.Render("No progress recorded yet. Run `seeder init` or `seeder run`."))
	}
	renderStorage(env.out(), counts, health)
	return nil
}

func runReset(ctx context.Context, env Env, args []string) error {
	fs := newFlagSet("reset", env.out())
	yes := fs.Bool("yes", false, "confirm deleting batch progress")
	if handled, err := parseFlags(fs, args); handled {
		return err
	}
	if !*yes {
		return apperrors.New(apperrors.CodeInvalidConfig, "reset deletes batch progress; rerun with --yes to confirm")
	}

	a, cleanup, err := app.Build(ctx, env.Config, env.Options)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Orchestrator.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(env.out(), okStyle.Render("Progress state deleted."), mutedStyle.Render("The cost ledger was kept."))
	return nil
}

func selectedJobs(jobs []*seeding.JobDescriptor, only string) []*seeding.JobDescriptor {
	if only == "" {
		return jobs
	}
	for _, j := range jobs {
		if j.Name == only {
			return []*seeding.JobDescriptor{j}
		}
	}
	return nil
}

func progressPrinter(w io.Writer) seeding.ProgressSink {
	return seeding.SinkFunc(func(_ context.Context, ev seeding.ItemEvent) {
		prefix := mutedStyle.Render(fmt.Sprintf("[%s %d/%d]", ev.Job, ev.Index+1, ev.Total))
		switch ev.Outcome {
		case seeding.OutcomeSucceeded:
			fmt.Fprintf(w, "%s %s %s %s\n", prefix, okStyle.Render("ok"), ev.Key, mutedStyle.Render(formatUSD(ev.CostUSD)))
		case seeding.OutcomeFailed:
			fmt.Fprintf(w, "%s %s %s %v\n", prefix, errorStyle.Render("failed"), ev.Key, ev.Err)
		default:
			fmt.Fprintf(w, "%s %s %s\n", prefix, mutedStyle.Render("skip"), ev.Key)
		}
	})
}

func printCreated(w io.Writer, what string, created bool) {
	if created {
		fmt.Fprintf(w, "%s %s\n", okStyle.Render("created"), what)
		return
	}
	fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("exists "), what)
}
