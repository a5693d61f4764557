// Package cache 缓存类型定义
package cache

import "time"

// ============================================================================
// Key 前缀和常量
// ============================================================================

const (
	// KeyRunSteps 阶段结果 key 前缀：run_steps:<runId>:<step>
	KeyRunSteps = "run_steps:"
)

// TTL 常量
var (
	// TTLStepResult 阶段结果保留时长
	//
	// 只需要覆盖重试窗口：过期后重放会重新执行阶段，
	// 幂等性退化为 at-least-once，由阶段自身兜底
	TTLStepResult = 24 * time.Hour
)
