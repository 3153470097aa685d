package seeding

import (
	"context"
	"time"
)

// Governor 生成调用之间的节流
type Governor interface {
	Wait(ctx context.Context) error
}

// FixedGovernor 固定间隔节流，任务串行执行所以无需协调多个调用方
type FixedGovernor struct {
	delay time.Duration
}

// NewFixedGovernor 创建固定间隔节流器
func NewFixedGovernor(delay time.Duration) *FixedGovernor {
	return &FixedGovernor{delay: delay}
}

// Wait 阻塞固定时长，context 取消时提前返回
func (g *FixedGovernor) Wait(ctx context.Context) error {
	return sleep(ctx, g.delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
