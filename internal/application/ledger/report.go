package ledger

import (
	"sort"
	"time"

	"schoolgenius-seeder/internal/domain/entity"
)

// projectionDays 月度预测使用的天数
const projectionDays = 30

// ProviderSummary 单个提供商在某周期内的汇总
type ProviderSummary struct {
	Provider     string  `json:"provider"`
	Requests     int64   `json:"requests"`
	CostUSD      float64 `json:"costUSD"`
	InputTokens  int64   `json:"inputTokens,omitempty"`
	OutputTokens int64   `json:"outputTokens,omitempty"`
	InputChars   int64   `json:"inputChars,omitempty"`
	OutputChars  int64   `json:"outputChars,omitempty"`
}

// PeriodSummary 某周期的汇总
type PeriodSummary struct {
	Label     string            `json:"label"`
	Period    string            `json:"period"`
	Providers []ProviderSummary `json:"providers"`
	Requests  int64             `json:"requests"`
	TotalUSD  float64           `json:"totalUSD"`
}

// Projection 月度开销预测。
// 这是按历史日均线性外推的预算提示，不是预测模型：
// averageDaily = 总开销 / 有调用记录的天数，projectedMonthly = averageDaily * 30。
type Projection struct {
	ActiveDays          int     `json:"activeDays"`
	AverageDailyUSD     float64 `json:"averageDailyUSD"`
	ProjectedMonthlyUSD float64 `json:"projectedMonthlyUSD"`
	MonthlyBudgetUSD    float64 `json:"monthlyBudgetUSD"`
	// RemainingUSD 预算减去预测值，负数表示超支
	RemainingUSD float64 `json:"remainingUSD"`
	OverBudget   bool    `json:"overBudget"`
}

// CostReport 账本报表
type CostReport struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Today       PeriodSummary `json:"today"`
	Month       PeriodSummary `json:"month"`
	AllTime     PeriodSummary `json:"allTime"`
	Projection  Projection    `json:"projection"`
}

func buildReport(doc *entity.CostLedger, now time.Time, budget float64) *CostReport {
	day := now.Format(dayLayout)
	month := now.Format(monthLayout)

	report := &CostReport{
		GeneratedAt: now,
		Today:       summarize("today", day, doc.Daily[day]),
		Month:       summarize("this month", month, doc.Monthly[month]),
		AllTime:     summarize("all time", "total", doc.Total),
	}
	report.Projection = project(doc, report.AllTime.TotalUSD, budget)
	return report
}

func summarize(label, period string, entries map[string]*entity.CostLedgerEntry) PeriodSummary {
	s := PeriodSummary{Label: label, Period: period, Providers: []ProviderSummary{}}
	for name, e := range entries {
		if e == nil {
			continue
		}
		s.Providers = append(s.Providers, ProviderSummary{
			Provider:     name,
			Requests:     e.RequestCount,
			CostUSD:      e.CostUSD,
			InputTokens:  e.InputTokens,
			OutputTokens: e.OutputTokens,
			InputChars:   e.InputChars,
			OutputChars:  e.OutputChars,
		})
		s.Requests += e.RequestCount
		s.TotalUSD += e.CostUSD
	}
	sort.Slice(s.Providers, func(i, j int) bool { return s.Providers[i].Provider < s.Providers[j].Provider })
	return s
}

func project(doc *entity.CostLedger, lifetime, budget float64) Projection {
	active := 0
	for _, byProvider := range doc.Daily {
		for _, e := range byProvider {
			if e != nil && e.RequestCount > 0 {
				active++
				break
			}
		}
	}

	p := Projection{ActiveDays: active, MonthlyBudgetUSD: budget}
	if active > 0 {
		p.AverageDailyUSD = lifetime / float64(active)
	}
	p.ProjectedMonthlyUSD = p.AverageDailyUSD * projectionDays
	p.RemainingUSD = budget - p.ProjectedMonthlyUSD
	p.OverBudget = p.RemainingUSD < 0
	return p
}
