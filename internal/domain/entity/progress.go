package entity

import "time"

// CompletedJob 已完成任务记录
type CompletedJob struct {
	Name            string    `json:"name"`
	ItemsGenerated  int       `json:"itemsGenerated"`
	ItemsSkipped    int       `json:"itemsSkipped"`
	ItemsFailed     int       `json:"itemsFailed"`
	CostUSD         float64   `json:"costUSD"`
	DurationMinutes float64   `json:"durationMinutes"`
	CompletedAt     time.Time `json:"completedAt"`
}

// FailedJob 失败任务记录
type FailedJob struct {
	Name     string    `json:"name"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

// ProgressState 批处理断点
// 任意时刻最多一个 CurrentJob
type ProgressState struct {
	StartTime           time.Time      `json:"startTime"`
	CompletedJobs       []CompletedJob `json:"completedJobs"`
	FailedJobs          []FailedJob    `json:"failedJobs"`
	CurrentJob          string         `json:"currentJob,omitempty"`
	TotalItemsTarget    int            `json:"totalItemsTarget"`
	TotalCostTarget     float64        `json:"totalCostTarget"`
	ItemsGeneratedSoFar int            `json:"itemsGeneratedSoFar"`
	CostSpentSoFar      float64        `json:"costSpentSoFar"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// NewProgressState 创建空断点
func NewProgressState(now time.Time) *ProgressState {
	return &ProgressState{
		StartTime:     now,
		CompletedJobs: []CompletedJob{},
		FailedJobs:    []FailedJob{},
		UpdatedAt:     now,
	}
}

// IsCompleted 判断任务是否已完成
func (s *ProgressState) IsCompleted(name string) bool {
	for _, c := range s.CompletedJobs {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Completed 返回任务的完成记录
func (s *ProgressState) Completed(name string) (CompletedJob, bool) {
	for _, c := range s.CompletedJobs {
		if c.Name == name {
			return c, true
		}
	}
	return CompletedJob{}, false
}

// Failed 返回任务的失败记录
func (s *ProgressState) Failed(name string) (FailedJob, bool) {
	for _, f := range s.FailedJobs {
		if f.Name == name {
			return f, true
		}
	}
	return FailedJob{}, false
}

// MarkStarted 标记任务进入运行态
func (s *ProgressState) MarkStarted(name string, now time.Time) {
	s.CurrentJob = name
	s.UpdatedAt = now
}

// MarkCompleted 记录任务完成，替换同名旧记录并移出失败列表
func (s *ProgressState) MarkCompleted(c CompletedJob) {
	s.removeCompleted(c.Name)
	s.removeFailed(c.Name)
	s.CompletedJobs = append(s.CompletedJobs, c)
	s.ItemsGeneratedSoFar += c.ItemsGenerated
	s.CostSpentSoFar += c.CostUSD
	s.CurrentJob = ""
	s.UpdatedAt = c.CompletedAt
}

// MarkFailed 记录任务失败，partial 为失败前已落库的产出
func (s *ProgressState) MarkFailed(f FailedJob, itemsGenerated int, costUSD float64) {
	s.removeCompleted(f.Name)
	s.removeFailed(f.Name)
	s.FailedJobs = append(s.FailedJobs, f)
	s.ItemsGeneratedSoFar += itemsGenerated
	s.CostSpentSoFar += costUSD
	s.CurrentJob = ""
	s.UpdatedAt = f.FailedAt
}

// ClearCurrent 清除运行中任务
func (s *ProgressState) ClearCurrent(now time.Time) {
	s.CurrentJob = ""
	s.UpdatedAt = now
}

func (s *ProgressState) removeCompleted(name string) {
	out := s.CompletedJobs[:0]
	for _, c := range s.CompletedJobs {
		if c.Name != name {
			out = append(out, c)
		}
	}
	s.CompletedJobs = out
}

func (s *ProgressState) removeFailed(name string) {
	out := s.FailedJobs[:0]
	for _, f := range s.FailedJobs {
		if f.Name != name {
			out = append(out, f)
		}
	}
	s.FailedJobs = out
}
