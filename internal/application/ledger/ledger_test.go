package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/internal/domain/service"
	"schoolgenius-seeder/internal/infrastructure/persistence/memory"
	apperrors "schoolgenius-seeder/pkg/errors"
)

const epsilon = 1e-9

var testRates = RateTable{
	"grok":   {Unit: UnitRequest, PerRequestUSD: 0.001},
	"claude": {Unit: UnitTokens, InputPerMillionUSD: 3, OutputPerMillionUSD: 15},
	"gemini": {Unit: UnitCharacters, InputPerMillionUSD: 0.075, OutputPerMillionUSD: 0.30, FreeRequestsPerDay: 2},
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLedger(store repository.DocumentStore, c *clock) *Ledger {
	l := New(store, testRates, 50)
	l.now = c.now
	return l
}

func TestRateApply(t *testing.T) {
	cases := []struct {
		name  string
		rate  Rate
		usage service.Usage
		want  float64
	}{
		{"flat", testRates["grok"], service.Usage{InputTokens: 999}, 0.001},
		{"tokens", testRates["claude"], service.Usage{InputTokens: 1000, OutputTokens: 2000}, 0.003 + 0.03},
		{"characters", testRates["gemini"], service.Usage{InputChars: 4000, OutputChars: 1000, InputTokens: 7}, 0.0003 + 0.0003},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rate.Apply(tc.usage); math.Abs(got-tc.want) > epsilon {
				t.Errorf("Apply = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRecordAllTimeEqualsSumOfCalls(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	c := &clock{t: time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC)}
	l := newTestLedger(store, c)

	var want float64
	for i := 0; i < 50; i++ {
		u := service.Usage{InputTokens: int64(100 + i), OutputTokens: int64(300 + 2*i)}
		want += testRates["claude"].Apply(u)
		if _, err := l.Record(ctx, "claude", u); err != nil {
			t.Fatalf("Record: %v", err)
		}
		// 跨越日与月的边界
		c.t = c.t.Add(3 * time.Hour)
	}

	report, err := l.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if got := report.AllTime.TotalUSD; math.Abs(got-want) > epsilon {
		t.Errorf("all time = %v, want %v", got, want)
	}
	if report.AllTime.Requests != 50 {
		t.Errorf("requests = %d, want 50", report.AllTime.Requests)
	}

	// 持久化后重新加载，各日条目之和等于总计
	var doc entity.CostLedger
	if ok, err := store.Load(ctx, repository.DocumentCostLedger, &doc); !ok || err != nil {
		t.Fatalf("load persisted ledger: ok=%v err=%v", ok, err)
	}
	var daySum, monthSum float64
	for _, byProvider := range doc.Daily {
		daySum += byProvider["claude"].CostUSD
	}
	for _, byProvider := range doc.Monthly {
		monthSum += byProvider["claude"].CostUSD
	}
	if math.Abs(daySum-want) > epsilon || math.Abs(monthSum-want) > epsilon {
		t.Errorf("period sums day=%v month=%v, want %v", daySum, monthSum, want)
	}
	if len(doc.Monthly) != 2 {
		t.Errorf("months = %d, want 2", len(doc.Monthly))
	}
}

func TestRecordFreeTier(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	l := newTestLedger(memory.NewDocumentStore(), c)
	u := service.Usage{InputChars: 1_000_000}

	var costs []float64
	for i := 0; i < 3; i++ {
		cost, err := l.Record(ctx, "gemini", u)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		costs = append(costs, cost)
	}
	if costs[0] != 0 || costs[1] != 0 {
		t.Errorf("free requests cost %v", costs[:2])
	}
	if math.Abs(costs[2]-0.075) > epsilon {
		t.Errorf("third request cost = %v, want 0.075", costs[2])
	}

	c.t = c.t.Add(24 * time.Hour)
	cost, err := l.Record(ctx, "gemini", u)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if cost != 0 {
		t.Errorf("free tier did not reset on new day: cost = %v", cost)
	}
}

func TestReportProjection(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)}
	l := newTestLedger(memory.NewDocumentStore(), c)

	// 两个活跃日各 1000 次 grok 调用，共 $2
	for day := 0; day < 2; day++ {
		for i := 0; i < 1000; i++ {
			if _, err := l.Record(ctx, "grok", service.Usage{}); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
		c.t = c.t.Add(24 * time.Hour)
	}

	report, err := l.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	p := report.Projection
	if p.ActiveDays != 2 {
		t.Fatalf("active days = %d, want 2", p.ActiveDays)
	}
	if math.Abs(p.AverageDailyUSD-1) > 1e-6 || math.Abs(p.ProjectedMonthlyUSD-30) > 1e-6 {
		t.Errorf("projection = %+v", p)
	}
	if math.Abs(p.RemainingUSD-20) > 1e-6 || p.OverBudget {
		t.Errorf("budget status = %+v", p)
	}
	if report.Today.Requests != 0 {
		t.Errorf("today requests = %d, want 0 (clock moved past active days)", report.Today.Requests)
	}
	if report.Month.Requests != 2000 {
		t.Errorf("month requests = %d, want 2000", report.Month.Requests)
	}
}

func TestReportEmptyLedger(t *testing.T) {
	l := newTestLedger(memory.NewDocumentStore(), &clock{t: time.Now()})
	report, err := l.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Projection.ActiveDays != 0 || report.Projection.ProjectedMonthlyUSD != 0 {
		t.Errorf("projection = %+v", report.Projection)
	}
	if report.Projection.RemainingUSD != 50 {
		t.Errorf("remaining = %v, want 50", report.Projection.RemainingUSD)
	}
}

func TestRecordIntoLedgerWithNullEntries(t *testing.T) {
	store := memory.NewDocumentStore()
	raw := json.RawMessage(`{
		"daily": {"2024-05-01": null},
		"monthly": {"2024-05": {"grok": null}},
		"total": {"grok": null}
	}`)
	if err := store.Save(context.Background(), repository.DocumentCostLedger, raw); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c := &clock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	l := newTestLedger(store, c)
	if _, err := l.Report(context.Background()); err != nil {
		t.Fatalf("Report before record: %v", err)
	}
	cost, err := l.Record(context.Background(), "grok", service.Usage{})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if math.Abs(cost-0.001) > epsilon {
		t.Errorf("cost = %v", cost)
	}

	report, err := l.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.Today.Requests != 1 || report.Month.Requests != 1 || report.AllTime.Requests != 1 {
		t.Errorf("requests today/month/all = %d/%d/%d", report.Today.Requests, report.Month.Requests, report.AllTime.Requests)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocumentStore()
	l := newTestLedger(store, &clock{t: time.Now()})

	created, err := l.Init(ctx)
	if err != nil || !created {
		t.Fatalf("first Init: created=%v err=%v", created, err)
	}
	if _, err := l.Record(ctx, "grok", service.Usage{}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	again := newTestLedger(store, &clock{t: time.Now()})
	created, err = again.Init(ctx)
	if err != nil || created {
		t.Fatalf("second Init: created=%v err=%v", created, err)
	}
	report, err := again.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if report.AllTime.Requests != 1 {
		t.Errorf("Init overwrote the ledger: requests = %d", report.AllTime.Requests)
	}
}

type failingStore struct{ *memory.DocumentStore }

func (failingStore) Save(context.Context, string, any) error { return errors.New("disk full") }

func TestRecordPersistFailure(t *testing.T) {
	l := newTestLedger(failingStore{memory.NewDocumentStore()}, &clock{t: time.Now()})
	_, err := l.Record(context.Background(), "grok", service.Usage{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.HasCode(err, apperrors.CodeStorageError) {
		t.Errorf("error = %v, want storage error", err)
	}
}
