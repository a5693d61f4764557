package worker

import (
	"context"
	"encoding/json"
	"log"

	"vibebuild/internal/shared/cache"
)

// runStep 执行一个记忆化阶段
//
// 以 (runId, name) 为幂等键：缓存命中时直接返回已记录的结果，
// 不再执行 fn；未命中时执行 fn 并在返回前写入结果。
// 缓存本身的读写失败只记日志，不影响阶段执行
func runStep[T any](ctx context.Context, steps cache.StepCache, runID, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if steps != nil {
		raw, hit, err := steps.GetStepResult(ctx, runID, name)
		if err != nil {
			log.Printf("[Worker] Step cache read failed: run=%s step=%s err=%v", runID, name, err)
		} else if hit {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
			log.Printf("[Worker] Step cache entry corrupt, re-running: run=%s step=%s", runID, name)
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	if steps != nil {
		raw, err := json.Marshal(v)
		if err == nil {
			if err := steps.SetStepResult(ctx, runID, name, raw); err != nil {
				log.Printf("[Worker] Step cache write failed: run=%s step=%s err=%v", runID, name, err)
			}
		}
	}
	return v, nil
}
