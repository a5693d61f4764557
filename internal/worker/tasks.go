// Package worker 实现构建工作流编排
//
// 编排器按固定顺序推进一组幂等阶段：创建沙箱 → 加载上下文 →
// 智能体循环 → 生成标题和回复 → 持久化 → 发布终态 → 清理。
// 每个阶段以 (runId, step) 为键记忆化，崩溃重试不会重复副作用
package worker

import "vibebuild/internal/shared/model"

// 阶段记忆化使用的步骤名
const (
	stepCreateSandbox = "create-sandbox"
	stepInitState     = "init-state"
	stepAgentLoop     = "agent-loop"
	stepFragmentTitle = "fragment-title"
	stepFinalResponse = "final-response"
	stepSandboxURL    = "sandbox-url"
	stepSaveResult    = "save-result"
)

// 进度任务 ID（UI 侧按这些 ID 渲染任务列表）
const (
	taskSandbox      = "get-sandbox-id"
	taskInitNetwork  = "init-network"
	taskAgentLoop    = "agent-loop"
	taskTitle        = "fragment-title"
	taskResponse     = "response"
	taskSaveResult   = "save-result"
	taskFinalization = "finalization"
)

// newProgressTasks 构建一个 Run 的初始任务列表
func newProgressTasks() []model.ProgressTask {
	return []model.ProgressTask{
		{ID: taskSandbox, Label: "Creating sandbox environment", Status: model.TaskQueued},
		{ID: taskInitNetwork, Label: "Analyzing context", Status: model.TaskQueued},
		{ID: taskAgentLoop, Label: "Agent at work", Status: model.TaskQueued},
		{ID: taskTitle, Label: "Generating title", Status: model.TaskQueued},
		{ID: taskResponse, Label: "Personalizing response", Status: model.TaskQueued},
		{ID: taskSaveResult, Label: "Saving version", Status: model.TaskQueued},
		{ID: taskFinalization, Label: "Done!", Status: model.TaskQueued},
	}
}
