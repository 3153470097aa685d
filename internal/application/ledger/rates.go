// Package ledger 提供按提供商的开销账本与预算预测
package ledger

import (
	"strings"

	"schoolgenius-seeder/internal/config"
	"schoolgenius-seeder/internal/domain/service"
)

// Unit 计量单位
type Unit string

const (
	UnitRequest    Unit = "requests"
	UnitTokens     Unit = "tokens"
	UnitCharacters Unit = "characters"
)

// Rate 单个提供商的计费模型
type Rate struct {
	Unit                Unit
	PerRequestUSD       float64
	InputPerMillionUSD  float64
	OutputPerMillionUSD float64
	// FreeRequestsPerDay 每日前 N 次请求免费
	FreeRequestsPerDay int
}

// RateTable 提供商名称到费率的映射
type RateTable map[string]Rate

// RatesFromConfig 从配置构建费率表
func RatesFromConfig(cfg map[string]config.RateConfig) RateTable {
	table := make(RateTable, len(cfg))
	for name, rc := range cfg {
		unit := Unit(strings.ToLower(rc.Unit))
		if unit == "" {
			unit = UnitRequest
		}
		table[name] = Rate{
			Unit:                unit,
			PerRequestUSD:       rc.PerRequestUSD,
			InputPerMillionUSD:  rc.InputPerMillionUSD,
			OutputPerMillionUSD: rc.OutputPerMillionUSD,
			FreeRequestsPerDay:  rc.FreeRequestsPerDay,
		}
	}
	return table
}

// Apply 计算一次调用的费用，不考虑免费额度
func (r Rate) Apply(u service.Usage) float64 {
	cost := r.PerRequestUSD
	switch r.Unit {
	case UnitTokens:
		cost += float64(u.InputTokens)*r.InputPerMillionUSD/1e6 + float64(u.OutputTokens)*r.OutputPerMillionUSD/1e6
	case UnitCharacters:
		cost += float64(u.InputChars)*r.InputPerMillionUSD/1e6 + float64(u.OutputChars)*r.OutputPerMillionUSD/1e6
	}
	return cost
}
