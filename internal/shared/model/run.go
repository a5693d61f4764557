// Package model 定义核心数据模型
//
// run.go 包含构建请求相关的数据模型定义：
//   - RunRequest：一次构建请求（入站事件载荷）
//   - RunResult：编排器的最终返回值
package model

import (
	"fmt"
)

// EventBuildRequested 入站事件名称
const EventBuildRequested = "vibe/app.build.requested"

// 构建请求的默认值与边界
const (
	// DefaultModel 默认主模型层级
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxIterations Agent 循环默认迭代上限
	DefaultMaxIterations = 18

	// MaxIterationsCeiling 迭代上限的硬性天花板
	MaxIterationsCeiling = 40

	// MinRunIDLength runId 最小长度
	MinRunIDLength = 6

	// MaxPromptLength prompt 最大长度
	MaxPromptLength = 10000
)

// RunRequest 一次构建请求
//
// Run 是整个系统的幂等单元：
//   - RunID 由提交方生成（通常是触发本次构建的消息 ID）
//   - 所有持久化阶段都以 RunID 作为幂等键
//   - 一个 Run 只会被一个编排器执行处理
type RunRequest struct {
	RunID     string `json:"runId"`
	UserID    string `json:"userId"`
	Prompt    string `json:"prompt"`
	ProjectID string `json:"projectId,omitempty"`

	// PreviousMessages 调用方直接提供的会话上下文
	// 为空时编排器会按 ProjectID 从存储加载最近的历史消息
	PreviousMessages []ChatMessage `json:"previousMessages,omitempty"`

	// Model 主模型层级，空值使用 DefaultModel
	Model string `json:"model,omitempty"`

	// MaxIterations Agent 循环迭代上限，0 使用 DefaultMaxIterations
	MaxIterations int `json:"maxIterations,omitempty"`
}

// ApplyDefaults 填充默认值
func (r *RunRequest) ApplyDefaults() {
	if r.Model == "" {
		r.Model = DefaultModel
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = DefaultMaxIterations
	}
}

// Validate 校验请求载荷
//
// 校验失败属于致命错误：在产生任何副作用之前中止
func (r *RunRequest) Validate() error {
	if len(r.RunID) < MinRunIDLength {
		return fmt.Errorf("runId must be at least %d characters", MinRunIDLength)
	}
	if r.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(r.Prompt) > MaxPromptLength {
		return fmt.Errorf("prompt exceeds %d characters", MaxPromptLength)
	}
	if r.MaxIterations < 0 || r.MaxIterations > MaxIterationsCeiling {
		return fmt.Errorf("maxIterations must be between 1 and %d", MaxIterationsCeiling)
	}
	return nil
}

// RunResult 编排器的最终返回值
type RunResult struct {
	RunID         string `json:"runId"`
	FragmentTitle string `json:"fragmentTitle"`
	SandboxURL    string `json:"sandboxUrl"`
}
