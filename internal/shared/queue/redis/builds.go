// Package redis BuildQueue 操作
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"vibebuild/internal/shared/model"
	"vibebuild/internal/shared/queue"
)

// EnqueueBuild 把构建请求加入队列
func (s *Store) EnqueueBuild(ctx context.Context, req *model.RunRequest) (string, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: queue.KeyBuildRequests,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"event":      model.EventBuildRequested,
			"request":    string(reqJSON),
			"created_at": time.Now().Format(time.RFC3339Nano),
		},
	}

	return s.client.XAdd(ctx, args).Result()
}

// CreateBuildConsumerGroup 创建 worker 消费者组
func (s *Store) CreateBuildConsumerGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, queue.KeyBuildRequests, queue.BuildConsumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// ConsumeBuilds 领取待处理的构建请求
func (s *Store) ConsumeBuilds(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*queue.BuildMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    queue.BuildConsumerGroup,
		Consumer: consumerID,
		Streams:  []string{queue.KeyBuildRequests, ">"},
		Count:    count,
		Block:    blockTimeout,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var messages []*queue.BuildMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			m := &queue.BuildMessage{
				ID: msg.ID,
			}
			if reqStr, ok := msg.Values["request"].(string); ok {
				var req model.RunRequest
				if err := json.Unmarshal([]byte(reqStr), &req); err == nil {
					m.Request = &req
				}
			}
			if createdAt, ok := msg.Values["created_at"].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
					m.CreatedAt = t
				}
			}
			messages = append(messages, m)
		}
	}

	return messages, nil
}

// AckBuild 确认构建请求已处理
func (s *Store) AckBuild(ctx context.Context, messageID string) error {
	return s.client.XAck(ctx, queue.KeyBuildRequests, queue.BuildConsumerGroup, messageID).Err()
}

// GetBuildQueueLength 获取队列长度
func (s *Store) GetBuildQueueLength(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, queue.KeyBuildRequests).Result()
}

// GetBuildPendingCount 获取未确认消息数量
func (s *Store) GetBuildPendingCount(ctx context.Context) (int64, error) {
	pending, err := s.client.XPending(ctx, queue.KeyBuildRequests, queue.BuildConsumerGroup).Result()
	if err != nil {
		return 0, err
	}
	return pending.Count, nil
}

// 确保 Store 实现了 queue.BuildQueue 接口
var _ queue.BuildQueue = (*Store)(nil)
