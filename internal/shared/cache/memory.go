// Package cache 内存缓存实现（用于测试和单机模式）
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryCache 内存 StepCache 实现
type MemoryCache struct {
	mu    sync.RWMutex
	steps map[string]json.RawMessage
}

// NewMemoryCache 创建 MemoryCache 实例
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{steps: make(map[string]json.RawMessage)}
}

// Close 关闭缓存
func (c *MemoryCache) Close() error {
	return nil
}

func (c *MemoryCache) key(runID, step string) string {
	return runID + ":" + step
}

func (c *MemoryCache) GetStepResult(ctx context.Context, runID, step string) (json.RawMessage, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.steps[c.key(runID, step)]
	return val, ok, nil
}

func (c *MemoryCache) SetStepResult(ctx context.Context, runID, step string, result json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[c.key(runID, step)] = result
	return nil
}

func (c *MemoryCache) ClearStepResults(ctx context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.steps {
		if strings.HasPrefix(k, runID+":") {
			delete(c.steps, k)
		}
	}
	return nil
}

// 确保 MemoryCache 实现了 Cache 接口
var _ Cache = (*MemoryCache)(nil)
