// Package llm 大模型访问层
//
// 基于 gollm 做多提供商适配，并实现档位降级链：
// 请求指定的模型为主档位，失败后依次降级到内置备选档位，
// 每次尝试之间固定退避。重试由本层控制，gollm 自身重试关闭。
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/teilomillet/gollm"

	"vibebuild/internal/config"
	"vibebuild/internal/shared/model"
)

// 内置备选档位，配置未给出降级链时使用
var defaultTiers = []config.LLMTier{
	{Provider: "openai", Model: "gpt-4o-mini"},
	{Provider: "google", Model: "gemini-2.5-flash"},
}

// generateFunc 执行单次生成调用，测试中可替换
type generateFunc func(ctx context.Context, tier config.LLMTier, system, prompt string, temperature float64) (string, error)

// Client 带降级链的大模型客户端
type Client struct {
	cfg      config.LLMConfig
	generate generateFunc
	sleep    func(time.Duration)

	mu    sync.Mutex
	llms  map[string]gollm.LLM // "provider/model" → 实例
	temps map[string]float64   // 实例当前温度，避免重复 SetOption
}

// NewClient 创建客户端
func NewClient(cfg config.LLMConfig) *Client {
	c := &Client{
		cfg:   cfg,
		sleep: time.Sleep,
		llms:  make(map[string]gollm.LLM),
		temps: make(map[string]float64),
	}
	c.generate = c.gollmGenerate
	return c
}

// tiersFor 构建某次请求的档位链：请求模型为主档位，备选档位去重追加
func (c *Client) tiersFor(requestModel string) []config.LLMTier {
	fallbacks := c.cfg.Tiers
	if len(fallbacks) == 0 {
		fallbacks = defaultTiers
	}

	tiers := make([]config.LLMTier, 0, len(fallbacks)+1)
	if requestModel != "" {
		tiers = append(tiers, config.LLMTier{Provider: providerForModel(requestModel), Model: requestModel})
	}
	for _, t := range fallbacks {
		if len(tiers) > 0 && t.Model == tiers[0].Model {
			continue
		}
		tiers = append(tiers, t)
	}
	return tiers
}

// providerForModel 按模型名推断提供商
func providerForModel(m string) string {
	if strings.HasPrefix(strings.ToLower(m), "gemini") {
		return "google"
	}
	return "openai"
}

// Decide 请求下一步行动决策
//
// 温度 0.2，期望 JSON 输出。模型响应成功但 JSON 不可解析时
// 返回确定性的兜底决策（读取入口文件），不算失败；
// 整条降级链都调用失败时返回错误。
func (c *Client) Decide(ctx context.Context, requestModel, system string, turns []model.ChatMessage) (*model.Decision, error) {
	prompt := renderTurns(turns)

	raw, err := c.generateWithFallback(ctx, requestModel, system, prompt, 0.2)
	if err != nil {
		return nil, err
	}

	decision, err := model.ParseDecision([]byte(extractJSON(raw)))
	if err != nil {
		log.Printf("[llm] Unparseable decision, substituting fallback: %v", err)
		return model.FallbackDecision(), nil
	}
	return decision, nil
}

// Summarize 请求自由文本生成（标题、结果说明等），温度 0.4
func (c *Client) Summarize(ctx context.Context, requestModel, system, prompt string) (string, error) {
	out, err := c.generateWithFallback(ctx, requestModel, system, prompt, 0.4)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// generateWithFallback 沿降级链逐档尝试，档位之间固定退避
func (c *Client) generateWithFallback(ctx context.Context, requestModel, system, prompt string, temperature float64) (string, error) {
	tiers := c.tiersFor(requestModel)

	var lastErr error
	for i, tier := range tiers {
		if i > 0 {
			log.Printf("[llm] Falling back to %s/%s after error: %v", tier.Provider, tier.Model, lastErr)
			c.sleep(c.cfg.RetryBackoff)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		out, err := c.generate(ctx, tier, system, prompt, temperature)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("all model tiers failed: %w", lastErr)
}

// gollmGenerate 默认的生成实现，按档位缓存 gollm 实例
func (c *Client) gollmGenerate(ctx context.Context, tier config.LLMTier, system, prompt string, temperature float64) (string, error) {
	llmInst, err := c.llmFor(tier, temperature)
	if err != nil {
		return "", err
	}

	opts := []gollm.PromptOption{}
	if system != "" {
		opts = append(opts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	return llmInst.Generate(ctx, gollm.NewPrompt(prompt, opts...))
}

// llmFor 获取或创建档位对应的 gollm 实例
func (c *Client) llmFor(tier config.LLMTier, temperature float64) (gollm.LLM, error) {
	key := tier.Provider + "/" + tier.Model

	c.mu.Lock()
	defer c.mu.Unlock()

	inst, ok := c.llms[key]
	if !ok {
		gollmOpts := []gollm.ConfigOption{
			gollm.SetProvider(tier.Provider),
			gollm.SetModel(tier.Model),
			gollm.SetMaxTokens(c.cfg.MaxTokens),
			gollm.SetTemperature(temperature),
			gollm.SetMaxRetries(0), // 重试由降级链控制
			gollm.SetLogLevel(gollm.LogLevelWarn),
		}
		if apiKey := c.apiKeyFor(tier.Provider); apiKey != "" {
			gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
		}

		var err error
		inst, err = gollm.NewLLM(gollmOpts...)
		if err != nil {
			return nil, fmt.Errorf("create llm for %s: %w", key, err)
		}
		c.llms[key] = inst
		c.temps[key] = temperature
	}

	if c.temps[key] != temperature {
		inst.SetOption("temperature", temperature)
		c.temps[key] = temperature
	}
	return inst, nil
}

func (c *Client) apiKeyFor(provider string) string {
	switch provider {
	case "google":
		return c.cfg.GeminiKey
	default:
		return c.cfg.OpenAIKey
	}
}

// renderTurns 将对话轮次展开为单段文本
//
// 两角色对话协议：assistant 标记为 "model"，system 轮次
// 已折叠进系统指令，这里直接过滤掉
func renderTurns(turns []model.ChatMessage) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Role == model.ChatRoleSystem {
			continue
		}
		role := string(t.Role)
		if t.Role == model.ChatRoleAssistant {
			role = "model"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// extractJSON 从响应文本中提取 JSON 对象
//
// 模型经常把 JSON 包在 markdown 代码块或说明文字里，
// 取首个 '{' 到末个 '}' 之间的内容
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
