// Package queue 消息队列抽象接口
//
// 提供构建请求的入队和消费能力，当前由 Redis Streams 实现。
// 提交方（HTTP/CLI 面）把 vibe/app.build.requested 事件写入队列，
// 构建 worker 通过消费者组领取并执行。
package queue

import (
	"context"
	"time"

	"vibebuild/internal/shared/model"
)

// ============================================================================
// 队列接口定义
// ============================================================================

// BuildQueue 构建请求队列接口
type BuildQueue interface {
	// EnqueueBuild 把构建请求加入队列
	EnqueueBuild(ctx context.Context, req *model.RunRequest) (string, error)

	// CreateBuildConsumerGroup 创建 worker 消费者组（幂等）
	CreateBuildConsumerGroup(ctx context.Context) error

	// ConsumeBuilds 领取待处理的构建请求
	ConsumeBuilds(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*BuildMessage, error)

	// AckBuild 确认构建请求已处理
	//
	// 失败的 Run 也要确认：编排器此刻已经持久化了错误消息，
	// 重投只会产生重复的失败记录
	AckBuild(ctx context.Context, messageID string) error

	// GetBuildQueueLength 获取队列长度
	GetBuildQueueLength(ctx context.Context) (int64, error)

	// GetBuildPendingCount 获取未确认消息数量
	GetBuildPendingCount(ctx context.Context) (int64, error)
}

// Queue 消息队列组合接口
type Queue interface {
	BuildQueue
	Close() error
}
