// Package eventbus 事件总线抽象接口
//
// 提供 Run 进度事件的发布/订阅能力，当前由 Redis Streams 实现。
// 频道标识由 runId 确定性派生（run:<runId>），任何知道 runId 的
// 订阅方都可以直接接入，无需额外协调。
package eventbus

import (
	"context"
)

// ============================================================================
// 事件总线接口定义
// ============================================================================

// RunEventBus Run 事件总线接口
//
// Publish 对调用方是 fire-and-forget 语义：发布失败绝不影响编排逻辑，
// 由实现方自行记录日志。同一 Run 的事件对订阅者保证按发布顺序可见；
// 不保证向晚接入的订阅者回放（回放由 GetRunEvents 提供）。
type RunEventBus interface {
	PublishRunEvent(ctx context.Context, runID string, topic Topic, payload interface{}) error
	GetRunEvents(ctx context.Context, runID string, fromID string, count int64) ([]*RunEvent, error)
	GetRunEventCount(ctx context.Context, runID string) (int64, error)
	SubscribeRunEvents(ctx context.Context, runID string) (<-chan *RunEvent, error)
	DeleteRunEvents(ctx context.Context, runID string) error
}

// EventBus 事件总线组合接口
type EventBus interface {
	RunEventBus
	Close() error
}
