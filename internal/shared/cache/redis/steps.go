// Package redis StepCache 操作
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vibebuild/internal/shared/cache"
)

// stepKey 阶段结果 key：run_steps:<runId>:<step>
func stepKey(runID, step string) string {
	return fmt.Sprintf("%s%s:%s", cache.KeyRunSteps, runID, step)
}

// GetStepResult 读取已记录的阶段结果
func (s *Store) GetStepResult(ctx context.Context, runID, step string) (json.RawMessage, bool, error) {
	val, err := s.client.Get(ctx, stepKey(runID, step)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get step result: %w", err)
	}
	return json.RawMessage(val), true, nil
}

// SetStepResult 记录阶段结果
func (s *Store) SetStepResult(ctx context.Context, runID, step string, result json.RawMessage) error {
	if err := s.client.Set(ctx, stepKey(runID, step), []byte(result), cache.TTLStepResult).Err(); err != nil {
		return fmt.Errorf("failed to set step result: %w", err)
	}
	return nil
}

// ClearStepResults 清除一个 Run 的全部阶段结果
func (s *Store) ClearStepResults(ctx context.Context, runID string) error {
	pattern := fmt.Sprintf("%s%s:*", cache.KeyRunSteps, runID)

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan step results: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// 确保 Store 实现了 cache.StepCache 接口
var _ cache.StepCache = (*Store)(nil)
