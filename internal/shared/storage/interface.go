// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：repository/（SQL，postgres/sqlite 方言）、mongostore/
//   - 初始化时通过依赖注入传入实现
//
// 注意：事件总线、队列、阶段缓存在独立包：
//   - eventbus/：事件总线接口
//   - queue/：消息队列接口
//   - cache/：阶段结果缓存接口
package storage

import (
	"context"

	"vibebuild/internal/shared/model"
)

// ============================================================================
// 持久化存储接口（由 repository.Store / mongostore.Store 实现）
// ============================================================================

// MessageStore 消息存储接口
type MessageStore interface {
	// ListRecentMessages 读取项目最近 n 条消息，按创建时间从旧到新返回
	ListRecentMessages(ctx context.Context, projectID string, n int) ([]*model.Message, error)

	// CreateAssistantMessage 创建助手消息，可选地附带一个生成产物；
	// 两条记录在同一事务中写入
	CreateAssistantMessage(ctx context.Context, msg *model.Message, fragment *model.Fragment) error

	// CreateErrorMessage 创建错误内容的助手消息
	//
	// 工作流致命失败时的兜底写入，保证轮询方总能观察到终止状态
	CreateErrorMessage(ctx context.Context, projectID, content string) error
}

// FragmentStore 产物存储接口
type FragmentStore interface {
	GetFragment(ctx context.Context, id string) (*model.Fragment, error)
	GetFragmentByMessage(ctx context.Context, messageID string) (*model.Fragment, error)
}

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	MessageStore
	FragmentStore
	Close() error
}
