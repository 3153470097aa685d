package entity

import "time"

// CostLedgerEntry 某个周期内某个提供商的累计开销
// 周期内单调不减
type CostLedgerEntry struct {
	Period       string  `json:"period"`
	Provider     string  `json:"provider"`
	RequestCount int64   `json:"requestCount"`
	CostUSD      float64 `json:"costUSD"`
	InputTokens  int64   `json:"inputTokens,omitempty"`
	OutputTokens int64   `json:"outputTokens,omitempty"`
	InputChars   int64   `json:"inputChars,omitempty"`
	OutputChars  int64   `json:"outputChars,omitempty"`
}

// CostLedger 按天、按月和总计三个维度的开销账本，只追加
type CostLedger struct {
	Daily     map[string]map[string]*CostLedgerEntry `json:"daily"`
	Monthly   map[string]map[string]*CostLedgerEntry `json:"monthly"`
	Total     map[string]*CostLedgerEntry            `json:"total"`
	UpdatedAt time.Time                              `json:"updatedAt"`
}

// NewCostLedger 创建空账本
func NewCostLedger() *CostLedger {
	return &CostLedger{
		Daily:   map[string]map[string]*CostLedgerEntry{},
		Monthly: map[string]map[string]*CostLedgerEntry{},
		Total:   map[string]*CostLedgerEntry{},
	}
}

// Normalize 补齐反序列化后可能为空的 map
func (l *CostLedger) Normalize() {
	if l.Daily == nil {
		l.Daily = map[string]map[string]*CostLedgerEntry{}
	}
	if l.Monthly == nil {
		l.Monthly = map[string]map[string]*CostLedgerEntry{}
	}
	if l.Total == nil {
		l.Total = map[string]*CostLedgerEntry{}
	}
}

// Entry 返回周期条目，不存在时惰性创建
func Entry(bucket map[string]map[string]*CostLedgerEntry, period, provider string) *CostLedgerEntry {
	byProvider := bucket[period]
	if byProvider == nil {
		byProvider = map[string]*CostLedgerEntry{}
		bucket[period] = byProvider
	}
	e := byProvider[provider]
	if e == nil {
		e = &CostLedgerEntry{Period: period, Provider: provider}
		byProvider[provider] = e
	}
	return e
}

// TotalEntry 返回提供商总计条目
func (l *CostLedger) TotalEntry(provider string) *CostLedgerEntry {
	e := l.Total[provider]
	if e == nil {
		e = &CostLedgerEntry{Period: "total", Provider: provider}
		l.Total[provider] = e
	}
	return e
}
