package ledger

import (
	"context"
	"sync"
	"time"

	"schoolgenius-seeder/internal/domain/entity"
	"schoolgenius-seeder/internal/domain/repository"
	"schoolgenius-seeder/internal/domain/service"
	apperrors "schoolgenius-seeder/pkg/errors"
	"schoolgenius-seeder/pkg/logger"
	"schoolgenius-seeder/pkg/metrics"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Ledger 开销账本，每次记录后整体落盘
type Ledger struct {
	store  repository.DocumentStore
	rates  RateTable
	budget float64
	now    func() time.Time

	mu  sync.Mutex
	doc *entity.CostLedger
}

// New 创建账本
func New(store repository.DocumentStore, rates RateTable, monthlyBudgetUSD float64) *Ledger {
	return &Ledger{
		store:  store,
		rates:  rates,
		budget: monthlyBudgetUSD,
		now:    time.Now,
	}
}

// Init 账本文档不存在时创建空账本
func (l *Ledger) Init(ctx context.Context) (created bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc := entity.NewCostLedger()
	found, err := l.store.Load(ctx, repository.DocumentCostLedger, doc)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to load cost ledger")
	}
	if found {
		doc.Normalize()
		l.doc = doc
		return false, nil
	}
	doc.UpdatedAt = l.now().UTC()
	if err := l.store.Save(ctx, repository.DocumentCostLedger, doc); err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to save cost ledger")
	}
	l.doc = doc
	return true, nil
}

// Record 计算费用并计入当日、当月与总计，返回本次费用
func (l *Ledger) Record(ctx context.Context, provider string, usage service.Usage) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadLocked(ctx); err != nil {
		return 0, err
	}

	now := l.now().UTC()
	day := now.Format(dayLayout)
	month := now.Format(monthLayout)

	daily := entity.Entry(l.doc.Daily, day, provider)
	monthly := entity.Entry(l.doc.Monthly, month, provider)
	total := l.doc.TotalEntry(provider)

	rate, ok := l.rates[provider]
	if !ok {
		logger.Warn(ctx, "no billing rate for provider, recording zero cost", "provider", provider)
	}
	cost := rate.Apply(usage)
	if rate.FreeRequestsPerDay > 0 && daily.RequestCount < int64(rate.FreeRequestsPerDay) {
		cost = 0
	}

	for _, e := range []*entity.CostLedgerEntry{daily, monthly, total} {
		e.RequestCount++
		e.CostUSD += cost
		e.InputTokens += usage.InputTokens
		e.OutputTokens += usage.OutputTokens
		e.InputChars += usage.InputChars
		e.OutputChars += usage.OutputChars
	}
	l.doc.UpdatedAt = now

	if err := l.store.Save(ctx, repository.DocumentCostLedger, l.doc); err != nil {
		return cost, apperrors.Wrap(err, apperrors.CodeStorageError, "failed to persist cost ledger")
	}

	metrics.ProviderCostUSD.WithLabelValues(provider).Add(cost)
	switch rate.Unit {
	case UnitCharacters:
		metrics.ProviderUnits.WithLabelValues(provider, "input_chars").Add(float64(usage.InputChars))
		metrics.ProviderUnits.WithLabelValues(provider, "output_chars").Add(float64(usage.OutputChars))
	default:
		metrics.ProviderUnits.WithLabelValues(provider, "input_tokens").Add(float64(usage.InputTokens))
		metrics.ProviderUnits.WithLabelValues(provider, "output_tokens").Add(float64(usage.OutputTokens))
	}
	return cost, nil
}

// Report 读取最新账本并生成报表
func (l *Ledger) Report(ctx context.Context) (*CostReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadLocked(ctx); err != nil {
		return nil, err
	}
	return buildReport(l.doc, l.now().UTC(), l.budget), nil
}

func (l *Ledger) loadLocked(ctx context.Context) error {
	if l.doc != nil {
		return nil
	}
	doc := entity.NewCostLedger()
	if _, err := l.store.Load(ctx, repository.DocumentCostLedger, doc); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageError, "failed to load cost ledger")
	}
	doc.Normalize()
	l.doc = doc
	return nil
}
