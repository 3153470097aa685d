package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"schoolgenius-seeder/internal/config"
	"schoolgenius-seeder/internal/infrastructure/persistence/memory"
	apperrors "schoolgenius-seeder/pkg/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Storage: config.StorageConfig{
			StateBackend:  "file",
			StateDir:      filepath.Join(dir, "state"),
			ContentDriver: "sqlite",
			SQLitePath:    filepath.Join(dir, "content.db"),
		},
		LLM: config.LLMConfig{
			DefaultProvider: "grok",
			Providers: map[string]config.ProviderConfig{
				"grok": {Kind: "openai", Model: "grok-3", Timeout: time.Second},
			},
		},
		Billing: config.BillingConfig{
			MonthlyBudgetUSD: 50,
			Rates:            map[string]config.RateConfig{"grok": {PerRequestUSD: 0.001}},
		},
		Seeding: config.SeedingConfig{
			Jobs:         []string{"time_greetings", "parent_struggle_guides"},
			JobProviders: map[string]string{"parent_struggle_guides": "claude"},
		},
	}
}

func TestBuildWiresFileAndSQLiteBackends(t *testing.T) {
	cfg := testConfig(t)
	a, cleanup, err := Build(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	if len(a.Jobs) != 2 || a.Jobs[0].Name != "time_greetings" {
		t.Fatalf("jobs = %v", a.Jobs)
	}
	if a.Jobs[1].Provider != "claude" {
		t.Errorf("provider override not applied: %q", a.Jobs[1].Provider)
	}
	if a.Jobs[0].Provider != "" {
		t.Errorf("job without override got provider %q", a.Jobs[0].Provider)
	}

	created, err := a.Orchestrator.Init(context.Background())
	if err != nil || !created {
		t.Fatalf("Init = %v, %v", created, err)
	}
	if _, err := a.Ledger.Init(context.Background()); err != nil {
		t.Fatalf("ledger Init: %v", err)
	}
	st, found, err := a.Orchestrator.Status(context.Background())
	if err != nil || !found {
		t.Fatalf("Status = %v, %v", found, err)
	}
	if st.TotalItemsTarget != 64+15 {
		t.Errorf("items target = %d", st.TotalItemsTarget)
	}
}

func TestBuildRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.ContentDriver = "mongodb"
	if _, _, err := Build(context.Background(), cfg, Options{}); !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("unknown content driver: %v", err)
	}

	cfg = testConfig(t)
	cfg.Storage.StateBackend = "s3"
	if _, _, err := Build(context.Background(), cfg, Options{}); !apperrors.HasCode(err, apperrors.CodeInvalidConfig) {
		t.Errorf("unknown state backend: %v", err)
	}

	cfg = testConfig(t)
	cfg.Seeding.Jobs = []string{"nope"}
	if _, _, err := Build(context.Background(), cfg, Options{}); err == nil {
		t.Error("unknown job accepted")
	}
}

func TestBuildHonoursInjectedStores(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.StateBackend = "redis"
	cfg.Cache.Dedup.Enabled = true

	content := memory.NewContentStore()
	a, cleanup, err := Build(context.Background(), cfg, Options{
		Content:   content,
		Documents: memory.NewDocumentStore(),
	})
	if err != nil {
		t.Fatalf("Build with injected stores should not dial redis: %v", err)
	}
	defer cleanup()
	if a.Content != content {
		t.Error("injected content store replaced")
	}
}

func TestHealthAndRecordCounts(t *testing.T) {
	cfg := testConfig(t)
	a, cleanup, err := Build(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	health := a.Health(context.Background())
	if len(health) != 1 || health[0].Name != "sqlite" || !health[0].Healthy {
		t.Fatalf("health = %+v", health)
	}

	counts, err := a.RecordCounts(context.Background())
	if err != nil {
		t.Fatalf("RecordCounts: %v", err)
	}
	if len(counts) != 2 || counts[0].Table != "greeting_messages" || counts[1].Table != "parent_struggle_guides" {
		t.Fatalf("counts = %+v", counts)
	}
	for _, c := range counts {
		if c.Records != 0 {
			t.Errorf("%s has %d records in an empty store", c.Table, c.Records)
		}
	}
}

type downBackend struct{}

func (downBackend) HealthCheck(context.Context) error { return errors.New("connection refused") }

func TestHealthReportsFailingBackend(t *testing.T) {
	a := &App{checks: []namedCheck{{name: "redis", check: downBackend{}}}}
	health := a.Health(context.Background())
	if len(health) != 1 || health[0].Healthy || health[0].Error != "connection refused" {
		t.Fatalf("health = %+v", health)
	}
}
