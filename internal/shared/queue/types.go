// Package queue 消息队列类型定义
package queue

import (
	"time"

	"vibebuild/internal/shared/model"
)

// ============================================================================
// 消息类型
// ============================================================================

// BuildMessage 构建请求消息
type BuildMessage struct {
	ID        string
	Request   *model.RunRequest
	CreatedAt time.Time
}

// ============================================================================
// Key 前缀和常量
// ============================================================================

const (
	// KeyBuildRequests 构建请求队列 - 存放待执行的构建
	KeyBuildRequests = "builds:requested"

	// BuildConsumerGroup worker 消费者组
	BuildConsumerGroup = "build_workers"
)
