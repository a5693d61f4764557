package mongostore

import (
	"context"
	"time"

	"vibebuild/internal/shared/model"
	"vibebuild/internal/shared/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// MessageStore
// ============================================================================

// ListRecentMessages 读取项目最近 n 条消息，按创建时间从旧到新返回
func (s *Store) ListRecentMessages(ctx context.Context, projectID string, n int) ([]*model.Message, error) {
	if n <= 0 {
		n = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(n))
	msgs, err := findMany[model.Message](ctx, s.col(ColMessages), bson.D{{Key: "project_id", Value: projectID}}, opts)
	if err != nil {
		return nil, err
	}

	// 反转为旧→新
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CreateAssistantMessage 创建助手消息，可选地附带一个生成产物
//
// MongoDB 单机部署没有跨文档事务可用，按消息→产物顺序写入；
// 产物写入失败时留下孤立消息，读取方按 message_id 关联时天然忽略
func (s *Store) CreateAssistantMessage(ctx context.Context, msg *model.Message, fragment *model.Fragment) error {
	fillMessageDefaults(msg)

	if err := insertOne(ctx, s.col(ColMessages), msg); err != nil {
		return err
	}

	if fragment != nil {
		if fragment.ID == "" {
			fragment.ID = uuid.New().String()
		}
		fragment.MessageID = msg.ID
		if fragment.CreatedAt.IsZero() {
			fragment.CreatedAt = msg.CreatedAt
		}
		if fragment.UpdatedAt.IsZero() {
			fragment.UpdatedAt = fragment.CreatedAt
		}
		return insertOne(ctx, s.col(ColFragments), fragment)
	}
	return nil
}

// CreateErrorMessage 创建错误内容的助手消息
func (s *Store) CreateErrorMessage(ctx context.Context, projectID, content string) error {
	msg := &model.Message{
		ProjectID: projectID,
		Role:      model.MessageRoleAssistant,
		Type:      model.MessageTypeError,
		Content:   content,
	}
	fillMessageDefaults(msg)
	return insertOne(ctx, s.col(ColMessages), msg)
}

// fillMessageDefaults 补齐消息默认字段
func fillMessageDefaults(msg *model.Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Role == "" {
		msg.Role = model.MessageRoleAssistant
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeResult
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}
}

// ============================================================================
// FragmentStore
// ============================================================================

// GetFragment 按 ID 获取产物
func (s *Store) GetFragment(ctx context.Context, id string) (*model.Fragment, error) {
	return findOne[model.Fragment](ctx, s.col(ColFragments), bson.D{{Key: "_id", Value: id}})
}

// GetFragmentByMessage 按消息 ID 获取产物
func (s *Store) GetFragmentByMessage(ctx context.Context, messageID string) (*model.Fragment, error) {
	return findOne[model.Fragment](ctx, s.col(ColFragments), bson.D{{Key: "message_id", Value: messageID}})
}

// 确保 Store 实现了 storage.PersistentStore 接口
var _ storage.PersistentStore = (*Store)(nil)
