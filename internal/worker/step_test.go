package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"vibebuild/internal/shared/cache"
)

func TestRunStepMemoizes(t *testing.T) {
	steps := cache.NewMemoryCache()
	calls := 0
	fn := func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	}

	first, err := runStep(context.Background(), steps, "run-step-1", "phase", fn)
	require.NoError(t, err)
	require.Equal(t, "value", first)

	second, err := runStep(context.Background(), steps, "run-step-1", "phase", fn)
	require.NoError(t, err)
	require.Equal(t, "value", second)
	require.Equal(t, 1, calls)
}

func TestRunStepKeyedByRunAndName(t *testing.T) {
	steps := cache.NewMemoryCache()
	calls := 0
	fn := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	a, _ := runStep(context.Background(), steps, "run-a", "phase", fn)
	b, _ := runStep(context.Background(), steps, "run-b", "phase", fn)
	c, _ := runStep(context.Background(), steps, "run-a", "other", fn)
	require.Equal(t, 1, a)
	require.Equal(t, 2, b)
	require.Equal(t, 3, c)
}

func TestRunStepErrorIsNotCached(t *testing.T) {
	steps := cache.NewMemoryCache()
	calls := 0
	fn := func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "recovered", nil
	}

	_, err := runStep(context.Background(), steps, "run-step-2", "phase", fn)
	require.Error(t, err)

	// 失败不记忆化：重放得以重新执行
	out, err := runStep(context.Background(), steps, "run-step-2", "phase", fn)
	require.NoError(t, err)
	require.Equal(t, "recovered", out)
	require.Equal(t, 2, calls)
}

func TestRunStepCorruptEntryReruns(t *testing.T) {
	steps := cache.NewMemoryCache()
	require.NoError(t, steps.SetStepResult(context.Background(), "run-step-3", "phase", json.RawMessage("{not json")))

	out, err := runStep(context.Background(), steps, "run-step-3", "phase", func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	require.Equal(t, "fresh", out)
}

func TestRunStepStructValues(t *testing.T) {
	steps := cache.NewMemoryCache()
	type payload struct {
		Title string `json:"title"`
		Count int    `json:"count"`
	}

	first, err := runStep(context.Background(), steps, "run-step-4", "phase", func(ctx context.Context) (*payload, error) {
		return &payload{Title: "t", Count: 3}, nil
	})
	require.NoError(t, err)

	second, err := runStep(context.Background(), steps, "run-step-4", "phase", func(ctx context.Context) (*payload, error) {
		t.Fatal("memoized step must not re-run")
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, first, second)
}
