package entity

import "time"

// ItemFailure 单条生成失败
type ItemFailure struct {
	DedupKey string `json:"dedupKey"`
	Params   string `json:"params"`
	Class    string `json:"class"`
	Message  string `json:"message"`
}

// JobResult 单个任务的运行结果
type JobResult struct {
	Job            string        `json:"job"`
	ItemsSucceeded int           `json:"itemsSucceeded"`
	ItemsFailed    int           `json:"itemsFailed"`
	ItemsSkipped   int           `json:"itemsSkipped"`
	CostUSD        float64       `json:"costUSD"`
	Duration       time.Duration `json:"duration"`
	Failures       []ItemFailure `json:"failures,omitempty"`
}

// Total 已处理条目数
func (r *JobResult) Total() int {
	return r.ItemsSucceeded + r.ItemsFailed + r.ItemsSkipped
}
