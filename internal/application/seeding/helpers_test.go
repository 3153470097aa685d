package seeding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"schoolgenius-seeder/internal/application/ledger"
	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/service"
	"schoolgenius-seeder/internal/infrastructure/persistence/memory"
)

const stubProvider = "stub"

// stubGenerator 返回确定性的输出，fail 命中时返回对应错误
type stubGenerator struct {
	mu    sync.Mutex
	calls int
	fail  func(prompt string, call int) error
	// output 为空时返回 {"message": prompt}
	output func(prompt string) any
}

func (g *stubGenerator) Generate(_ context.Context, req service.GenerateRequest) (*service.Generation, error) {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()

	if g.fail != nil {
		if err := g.fail(req.Prompt, call); err != nil {
			return nil, err
		}
	}
	var value any = map[string]any{"message": "generated for " + req.Prompt}
	if g.output != nil {
		value = g.output(req.Prompt)
	}
	return &service.Generation{
		Provider: stubProvider,
		Model:    "stub-1",
		Output:   service.StructuredOutput{Value: value},
		Usage:    service.Usage{InputTokens: 10, OutputTokens: 20},
	}, nil
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type generatorMap map[string]service.Generator

func (m generatorMap) Generator(_ context.Context, name string) (service.Generator, error) {
	g, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return g, nil
}

type countingGovernor struct{ waits int }

func (g *countingGovernor) Wait(ctx context.Context) error {
	g.waits++
	return ctx.Err()
}

// testJob 构造 len(ages) x variants 的任务
func testJob(name string, ages []string, variants int) *JobDescriptor {
	return &JobDescriptor{
		Name: name,
		Axes: []Axis{
			{Name: "age_group", Values: ages},
			Range("variation", variants),
		},
		Prompt: func(_ context.Context, t entity.Tuple) (string, error) {
			return fmt.Sprintf("%s/%s/%s", name, t.Value("age_group"), t.Value("variation")), nil
		},
		Schema:               Schema{Fields: []Field{Required("message", TypeString)}},
		TargetTable:          name + "_table",
		IdentityFields:       []string{"age_group", "variation"},
		EstimatedItems:       len(ages) * variants,
		EstimatedUnitCostUSD: 0.001,
	}
}

type fixture struct {
	store    *memory.ContentStore
	docs     *memory.DocumentStore
	ledger   *ledger.Ledger
	gen      *stubGenerator
	governor *countingGovernor
	runner   *Runner
}

func newFixture() *fixture {
	f := &fixture{
		store:    memory.NewContentStore(),
		docs:     memory.NewDocumentStore(),
		gen:      &stubGenerator{},
		governor: &countingGovernor{},
	}
	f.ledger = ledger.New(f.docs, ledger.RateTable{stubProvider: {Unit: ledger.UnitRequest, PerRequestUSD: 0.001}}, 50)
	f.runner = NewRunner(f.store, generatorMap{stubProvider: f.gen}, f.ledger, f.governor, RunnerConfig{
		SystemInstruction: "Return only valid JSON",
		DefaultProvider:   stubProvider,
	})
	n := 0
	f.runner.newID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	f.runner.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

func (f *fixture) orchestrator(jobs ...*JobDescriptor) *Orchestrator {
	o, err := NewOrchestrator(jobs, f.runner, f.docs, f.ledger, OrchestratorConfig{})
	if err != nil {
		panic(err)
	}
	o.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return o
}
