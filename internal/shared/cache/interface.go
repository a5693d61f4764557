// Package cache 缓存层抽象接口
//
// 提供编排阶段结果的记忆化存取能力，当前由 Redis 实现。
//
// StepCache 是工作流持久化的承重件：每个阶段以 (runId, step) 为幂等键
// 在返回前写入结果，编排器重放（崩溃后重试）时先查缓存再执行，
// 保证已完成阶段的副作用不会重复发生（比如不会创建第二个沙箱）。
package cache

import (
	"context"
	"encoding/json"
)

// ============================================================================
// 缓存接口定义
// ============================================================================

// StepCache 阶段结果缓存接口
type StepCache interface {
	// GetStepResult 读取已记录的阶段结果；第二个返回值表示是否命中
	GetStepResult(ctx context.Context, runID, step string) (json.RawMessage, bool, error)

	// SetStepResult 记录阶段结果（先写后返回）
	SetStepResult(ctx context.Context, runID, step string, result json.RawMessage) error

	// ClearStepResults 清除一个 Run 的全部阶段结果
	ClearStepResults(ctx context.Context, runID string) error
}

// Cache 缓存组合接口
type Cache interface {
	StepCache
	Close() error
}
