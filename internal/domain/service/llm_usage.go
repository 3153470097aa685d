package service

import "context"

// CostRecorder 负责把一次已计费调用记入账本并持久化。
// 约定：返回时账本已落盘；返回错误意味着开销不可见，调用方应中止整个批次。
type CostRecorder interface {
	Record(ctx context.Context, provider string, usage Usage) (float64, error)
}
