package seeding

import (
	"time"

	"schoolgenius-seeder/internal/application/ledger"
	"schoolgenius-seeder/internal/domain/entity"
)

// JobStatus 任务在本次运行中的结局
type JobStatus string

const (
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusSkipped     JobStatus = "skipped"
	StatusInterrupted JobStatus = "interrupted"
)

// JobOutcome 单个任务在本次运行中的结果
type JobOutcome struct {
	Name     string            `json:"name"`
	Status   JobStatus         `json:"status"`
	Result   *entity.JobResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// BatchReport 一次编排运行的报告
type BatchReport struct {
	RunID      string       `json:"runId"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Jobs       []JobOutcome `json:"jobs"`
	// 本次运行
	ItemsGenerated int     `json:"itemsGenerated"`
	CostSpent      float64 `json:"costSpent"`
	// 跨运行累计
	ItemsGeneratedTotal int     `json:"itemsGeneratedTotal"`
	CostSpentTotal      float64 `json:"costSpentTotal"`
	ItemsTarget         int     `json:"itemsTarget"`
	CostTarget          float64 `json:"costTarget"`
	Interrupted         bool    `json:"interrupted"`

	Costs *ledger.CostReport `json:"costs,omitempty"`
}

// Failed 返回失败的任务
func (r *BatchReport) Failed() []JobOutcome {
	var out []JobOutcome
	for _, j := range r.Jobs {
		if j.Status == StatusFailed {
			out = append(out, j)
		}
	}
	return out
}

// HasFailures 本次运行是否有任务失败
func (r *BatchReport) HasFailures() bool {
	return len(r.Failed()) > 0
}

// Elapsed 运行耗时
func (r *BatchReport) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
