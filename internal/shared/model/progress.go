// Package model 定义核心数据模型
//
// progress.go 包含进度任务的数据模型定义：
//   - TaskStatus：进度任务状态枚举
//   - ProgressTask：编排器的一个命名阶段在 UI 上的投影
package model

// TaskStatus 进度任务状态
//
// 状态单调推进：queued → running → done（或 → error），每个 Run 内
// 每个任务只经历一次，绝不回退
type TaskStatus string

const (
	TaskQueued  TaskStatus = "queued"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskError   TaskStatus = "error"
)

// Valid 是否为已知状态
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskQueued, TaskRunning, TaskDone, TaskError:
		return true
	}
	return false
}

// ProgressTask 编排器的一个命名阶段
type ProgressTask struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Status TaskStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}
