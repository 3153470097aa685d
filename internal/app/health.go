package app

import (
	"context"
	"sort"

	apperrors "schoolgenius-seeder/pkg/errors"
)

// HealthChecker 可探活的外部后端
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type namedCheck struct {
	name  string
	check HealthChecker
}

// BackendHealth 单个后端的探活结果
type BackendHealth struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// TableCount 目标表中已写入的记录数
type TableCount struct {
	Table   string `json:"table"`
	Records int64  `json:"records"`
}

// Health 依次探测已连接的后端，失败不会中断其余探测
func (a *App) Health(ctx context.Context) []BackendHealth {
	out := make([]BackendHealth, 0, len(a.checks))
	for _, c := range a.checks {
		h := BackendHealth{Name: c.name, Healthy: true}
		if err := c.check.HealthCheck(ctx); err != nil {
			h.Healthy = false
			h.Error = err.Error()
		}
		out = append(out, h)
	}
	return out
}

// RecordCounts 按任务的目标表统计内容存储中的记录数
func (a *App) RecordCounts(ctx context.Context) ([]TableCount, error) {
	seen := make(map[string]bool)
	var tables []string
	for _, j := range a.Jobs {
		if !seen[j.TargetTable] {
			seen[j.TargetTable] = true
			tables = append(tables, j.TargetTable)
		}
	}
	sort.Strings(tables)

	counts := make([]TableCount, 0, len(tables))
	for _, t := range tables {
		n, err := a.Content.Count(ctx, t)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count records in "+t)
		}
		counts = append(counts, TableCount{Table: t, Records: n})
	}
	return counts, nil
}
