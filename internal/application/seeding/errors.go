package seeding

import (
	"fmt"

	"schoolgenius-seeder/internal/domain/entity"
)

// JobExecutionError 任务级失败，编排器记录后继续下一个任务
type JobExecutionError struct {
	Job string
	// Partial 失败前已完成的统计，已写入的内容仍然有效
	Partial *entity.JobResult
	Err     error
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("job %s failed: %v", e.Job, e.Err)
}

func (e *JobExecutionError) Unwrap() error { return e.Err }

// OrchestratorFatalError 进度或账本无法持久化，整个批次必须停止
type OrchestratorFatalError struct {
	Op  string
	Err error
}

func (e *OrchestratorFatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *OrchestratorFatalError) Unwrap() error { return e.Err }
