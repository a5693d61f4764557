// Package queue 消息队列 mock 实现
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vibebuild/internal/shared/model"
)

// MemoryQueue 内存队列实现（用于测试）
type MemoryQueue struct {
	mu      sync.Mutex
	seq     int
	pending []*BuildMessage
	acked   map[string]bool
}

// NewMemoryQueue 创建 MemoryQueue 实例
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{acked: make(map[string]bool)}
}

// Close 关闭队列
func (q *MemoryQueue) Close() error {
	return nil
}

func (q *MemoryQueue) EnqueueBuild(ctx context.Context, req *model.RunRequest) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	id := fmt.Sprintf("%d-0", q.seq)
	q.pending = append(q.pending, &BuildMessage{ID: id, Request: req, CreatedAt: time.Now()})
	return id, nil
}

func (q *MemoryQueue) CreateBuildConsumerGroup(ctx context.Context) error {
	return nil
}

func (q *MemoryQueue) ConsumeBuilds(ctx context.Context, consumerID string, count int64, blockTimeout time.Duration) ([]*BuildMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	n := int(count)
	if n <= 0 || n > len(q.pending) {
		n = len(q.pending)
	}
	out := q.pending[:n]
	q.pending = q.pending[n:]
	return out, nil
}

func (q *MemoryQueue) AckBuild(ctx context.Context, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked[messageID] = true
	return nil
}

func (q *MemoryQueue) GetBuildQueueLength(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

func (q *MemoryQueue) GetBuildPendingCount(ctx context.Context) (int64, error) {
	return 0, nil
}

// Acked 某条消息是否已确认（测试用）
func (q *MemoryQueue) Acked(messageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked[messageID]
}

// 确保 MemoryQueue 实现了 Queue 接口
var _ Queue = (*MemoryQueue)(nil)
