package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibebuild/internal/config"
	"vibebuild/internal/shared/model"
)

// newStubClient 创建生成调用可编程的测试客户端
func newStubClient(gen generateFunc) (*Client, *[]time.Duration) {
	c := NewClient(config.LLMConfig{MaxTokens: 1024, RetryBackoff: 2 * time.Second})
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }
	c.generate = gen
	return c, &slept
}

func TestTiersForRequestModel(t *testing.T) {
	c := NewClient(config.LLMConfig{})

	tiers := c.tiersFor("gpt-5")
	require.Len(t, tiers, 3)
	assert.Equal(t, config.LLMTier{Provider: "openai", Model: "gpt-5"}, tiers[0])
	assert.Equal(t, "gpt-4o-mini", tiers[1].Model)
	assert.Equal(t, "gemini-2.5-flash", tiers[2].Model)

	// 请求模型与备选重复时去重
	tiers = c.tiersFor("gpt-4o-mini")
	require.Len(t, tiers, 2)
	assert.Equal(t, "gpt-4o-mini", tiers[0].Model)
	assert.Equal(t, "gemini-2.5-flash", tiers[1].Model)

	// gemini 前缀推断 google 提供商
	tiers = c.tiersFor("gemini-2.0-pro")
	assert.Equal(t, "google", tiers[0].Provider)
}

func TestDecideSuccess(t *testing.T) {
	c, slept := newStubClient(func(ctx context.Context, tier config.LLMTier, system, prompt string, temp float64) (string, error) {
		assert.Equal(t, 0.2, temp)
		return `{"type": "tool", "tool": "terminal", "input": {"command": "npm install"}, "summary": "Installing"}`, nil
	})

	d, err := c.Decide(context.Background(), "gpt-4o-mini", DefaultAgentPrompt, []model.ChatMessage{
		{Role: model.ChatRoleUser, Content: "build a landing page"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionTool, d.Type)
	assert.Equal(t, model.ToolTerminal, d.Tool)
	assert.Empty(t, *slept)
}

func TestDecideStripsMarkdownFences(t *testing.T) {
	c, _ := newStubClient(func(ctx context.Context, tier config.LLMTier, system, prompt string, temp float64) (string, error) {
		return "```json\n{\"type\": \"final\", \"task_summary\": \"Done\"}\n```", nil
	})

	d, err := c.Decide(context.Background(), "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionFinal, d.Type)
	assert.Equal(t, "Done", d.TaskSummary)
}

func TestDecideMalformedJSONFallsBack(t *testing.T) {
	c, _ := newStubClient(func(ctx context.Context, tier config.LLMTier, system, prompt string, temp float64) (string, error) {
		return "Sure! I'll start by reading the project files.", nil
	})

	d, err := c.Decide(context.Background(), "gpt-4o-mini", "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionTool, d.Type)
	assert.Equal(t, model.ToolReadFiles, d.Tool)
	require.NotNil(t, d.ReadFiles)
	assert.Equal(t, []string{"/app/page.tsx"}, d.ReadFiles.Paths)
}

func TestFallbackChainOnErrors(t *testing.T) {
	var attempts []string
	c, slept := newStubClient(func(ctx context.Context, tier config.LLMTier, system, prompt string, temp float64) (string, error) {
		attempts = append(attempts, tier.Model)
		if tier.Model == "gemini-2.5-flash" {
			return `{"type": "final", "task_summary": "Recovered"}`, nil
		}
		return "", errors.New("rate limited")
	})

	d, err := c.Decide(context.Background(), "gpt-5", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Recovered", d.TaskSummary)

	// 主档失败后恰好两次降级尝试，每次降级前退避一次
	assert.Equal(t, []string{"gpt-5", "gpt-4o-mini", "gemini-2.5-flash"}, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *slept)
}

func TestFallbackChainExhausted(t *testing.T) {
	c, _ := newStubClient(func(ctx context.Context, tier config.LLMTier, system, prompt string, temp float64) (string, error) {
		return "", errors.New("provider down")
	})

	_, err := c.Decide(context.Background(), "gpt-4o-mini", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all model tiers failed")
}

func TestSummarizeTemperatureAndTrim(t *testing.T) {
	c, _ := newStubClient(func(ctx context.Context, tier config.LLMTier, system, prompt string, temp float64) (string, error) {
		assert.Equal(t, 0.4, temp)
		return "  Landing Page \n", nil
	})

	out, err := c.Summarize(context.Background(), "gpt-4o-mini", DefaultTitlePrompt, "built a landing page")
	require.NoError(t, err)
	assert.Equal(t, "Landing Page", out)
}

func TestRenderTurns(t *testing.T) {
	turns := []model.ChatMessage{
		{Role: model.ChatRoleSystem, Content: "you are an agent"},
		{Role: model.ChatRoleUser, Content: "build it"},
		{Role: model.ChatRoleAssistant, Content: `{"type":"tool"}`},
	}
	got := renderTurns(turns)
	// system 轮次被过滤，assistant 标记为 model
	assert.Equal(t, "user: build it\nmodel: {\"type\":\"tool\"}", got)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("prefix {\"a\":1} suffix"))
	assert.Equal(t, "no json here", extractJSON("no json here"))
}
