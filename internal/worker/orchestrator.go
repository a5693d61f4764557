package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"vibebuild/internal/llm"
	"vibebuild/internal/sandbox"
	"vibebuild/internal/shared/cache"
	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
	"vibebuild/internal/shared/storage"
)

// LLM 编排器需要的大模型能力
type LLM interface {
	Decide(ctx context.Context, requestModel, system string, turns []model.ChatMessage) (*model.Decision, error)
	Summarize(ctx context.Context, requestModel, system, prompt string) (string, error)
}

// FileSnapshotter 产物文件快照存储（可选）
type FileSnapshotter interface {
	SaveFragmentFiles(ctx context.Context, runID string, files map[string]string) (string, error)
}

// Prompts 三个系统提示词
type Prompts struct {
	Agent    string
	Title    string
	Response string
}

// Orchestrator 构建工作流编排器
//
// 所有依赖通过构造注入；Bus、Snapshots、Metrics 可为 nil
type Orchestrator struct {
	Bus       eventbus.RunEventBus
	Steps     cache.StepCache
	Store     storage.MessageStore
	Sandboxes sandbox.Manager
	LLM       LLM
	Snapshots FileSnapshotter
	Metrics   *Metrics

	Prompts Prompts
	AppPort int
}

// withDefaults 空槽位回填默认提示词
//
// 返回副本，不改写接收者：Run 可能在多个 goroutine 上
// 共享同一个 Orchestrator
func (p Prompts) withDefaults() Prompts {
	if p.Agent == "" {
		p.Agent = llm.DefaultAgentPrompt
	}
	if p.Title == "" {
		p.Title = llm.DefaultTitlePrompt
	}
	if p.Response == "" {
		p.Response = llm.DefaultResponsePrompt
	}
	return p
}

// Run 执行一个构建 Run 的完整工作流
//
// 只在 runId/prompt 缺失等输入校验失败时直接返回错误；
// 其余任何阶段抛出的错误都先发布 log 和 phase 事件、
// 持久化错误消息，再向上传播，保证订阅方总能观察到终止
func (o *Orchestrator) Run(ctx context.Context, req *model.RunRequest) (result *model.RunResult, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.ApplyDefaults()
	prompts := o.Prompts.withDefaults()
	appPort := o.AppPort
	if appPort == 0 {
		appPort = 3000
	}

	pub := eventbus.NewPublisher(o.Bus, req.RunID)
	start := time.Now()
	iterations := 0
	o.Metrics.RecordRunStart()

	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
			pub.Log(ctx, fmt.Sprintf("[System] Workflow failed: %v", err))
			pub.Phase(ctx, "workflow", model.TaskError, err.Error())
			o.persistErrorMessage(ctx, req.ProjectID)
		}
		o.Metrics.RecordRunComplete(status, time.Since(start), iterations)
	}()

	pub.Init(ctx, newProgressTasks())

	// 1) 沙箱
	pub.TaskUpdate(ctx, taskSandbox, model.TaskRunning, "")
	sandboxID, sErr := runStep(ctx, o.Steps, req.RunID, stepCreateSandbox, func(ctx context.Context) (string, error) {
		sbx, err := o.Sandboxes.Create(ctx)
		if err != nil {
			return "", err
		}
		return sbx.ID(), nil
	})

	// 清理：成功与失败路径都销毁沙箱，尽力而为。
	// Docker 容器没有 TTL，不销毁就是常驻泄漏
	defer func() {
		if sandboxID == "" {
			return
		}
		if kerr := o.Sandboxes.Kill(ctx, sandboxID); kerr != nil {
			log.Printf("[Worker] Sandbox cleanup failed: run=%s id=%s err=%v", req.RunID, sandboxID, kerr)
		}
	}()

	// 沙箱供给失败不立刻终止 Run：后续真正用到沙箱的工具调用
	// 会在 "no sandbox" 检查处快速失败
	var sbx sandbox.Sandbox
	if sErr != nil {
		log.Printf("[Worker] Sandbox provisioning failed: run=%s err=%v", req.RunID, sErr)
		pub.TaskUpdate(ctx, taskSandbox, model.TaskError, sErr.Error())
	} else {
		pub.TaskUpdate(ctx, taskSandbox, model.TaskDone, sandboxID)
		// 重连：create-sandbox 的结果被记忆化，重放时必须幂等
		var cErr error
		sbx, cErr = o.Sandboxes.Connect(ctx, sandboxID)
		if cErr != nil {
			log.Printf("[Worker] Sandbox connect failed: run=%s id=%s err=%v", req.RunID, sandboxID, cErr)
			pub.Log(ctx, fmt.Sprintf("[System] Failed to connect to sandbox: %v", cErr))
			sbx = nil
		}
	}

	// 2) 会话上下文
	pub.TaskUpdate(ctx, taskInitNetwork, model.TaskRunning, "")
	memory, err := runStep(ctx, o.Steps, req.RunID, stepInitState, func(ctx context.Context) ([]model.ChatMessage, error) {
		return o.loadMemory(ctx, req)
	})
	if err != nil {
		pub.TaskUpdate(ctx, taskInitNetwork, model.TaskError, err.Error())
		return nil, err
	}
	pub.TaskUpdate(ctx, taskInitNetwork, model.TaskDone, "")

	// 3) 智能体循环
	pub.TaskUpdate(ctx, taskAgentLoop, model.TaskRunning, "")
	loop, err := runStep(ctx, o.Steps, req.RunID, stepAgentLoop, func(ctx context.Context) (*loopResult, error) {
		return o.runAgentLoop(ctx, pub, req, sbx, memory, prompts.Agent)
	})
	if err != nil {
		pub.TaskUpdate(ctx, taskAgentLoop, model.TaskError, err.Error())
		return nil, err
	}
	iterations = loop.Iterations
	pub.TaskUpdate(ctx, taskAgentLoop, model.TaskDone, "")

	// 4) 产物标题
	pub.TaskUpdate(ctx, taskTitle, model.TaskRunning, "")
	fragmentTitle, err := runStep(ctx, o.Steps, req.RunID, stepFragmentTitle, func(ctx context.Context) (string, error) {
		title, err := o.LLM.Summarize(ctx, req.Model, prompts.Title, "Summary:\n"+loop.TaskSummary)
		if err != nil {
			return "", err
		}
		return sanitizeTitle(title), nil
	})
	if err != nil {
		pub.TaskUpdate(ctx, taskTitle, model.TaskError, err.Error())
		return nil, err
	}
	pub.TaskUpdate(ctx, taskTitle, model.TaskDone, fragmentTitle)

	// 5) 面向用户的回复
	pub.TaskUpdate(ctx, taskResponse, model.TaskRunning, "")
	response, err := runStep(ctx, o.Steps, req.RunID, stepFinalResponse, func(ctx context.Context) (string, error) {
		return o.LLM.Summarize(ctx, req.Model, prompts.Response,
			"Work summary:\n"+loop.TaskSummary+"\n\nGenerate the user-facing response.")
	})
	if err != nil {
		pub.TaskUpdate(ctx, taskResponse, model.TaskError, err.Error())
		return nil, err
	}
	pub.TaskUpdate(ctx, taskResponse, model.TaskDone, "")

	// 6) 沙箱预览地址
	sandboxURL, err := runStep(ctx, o.Steps, req.RunID, stepSandboxURL, func(ctx context.Context) (string, error) {
		if sbx == nil {
			return "", nil
		}
		return sbx.Host(appPort), nil
	})
	if err != nil {
		return nil, err
	}

	// 7) 持久化
	pub.TaskUpdate(ctx, taskSaveResult, model.TaskRunning, "")
	_, err = runStep(ctx, o.Steps, req.RunID, stepSaveResult, func(ctx context.Context) (string, error) {
		return o.saveResult(ctx, req, response, fragmentTitle, sandboxURL, loop.Files)
	})
	if err != nil {
		pub.TaskUpdate(ctx, taskSaveResult, model.TaskError, err.Error())
		return nil, err
	}
	pub.TaskUpdate(ctx, taskSaveResult, model.TaskDone, "")

	// 8) 终态事件
	pub.TaskUpdate(ctx, taskFinalization, model.TaskRunning, "")
	pub.Result(ctx, eventbus.ResultPayload{
		FragmentTitle: fragmentTitle,
		Response:      response,
		SandboxURL:    sandboxURL,
		TaskSummary:   loop.TaskSummary,
	})
	pub.TaskUpdate(ctx, taskFinalization, model.TaskDone, "")

	return &model.RunResult{
		RunID:         req.RunID,
		FragmentTitle: fragmentTitle,
		SandboxURL:    sandboxURL,
	}, nil
}

// loadMemory 加载会话上下文
//
// 调用方提供了 previousMessages 时直接使用；否则按 projectId
// 从存储读取最近 20 条消息，按时间从旧到新映射为对话轮次
func (o *Orchestrator) loadMemory(ctx context.Context, req *model.RunRequest) ([]model.ChatMessage, error) {
	if len(req.PreviousMessages) > 0 {
		return req.PreviousMessages, nil
	}
	if req.ProjectID == "" || o.Store == nil {
		return []model.ChatMessage{}, nil
	}

	history, err := o.Store.ListRecentMessages(ctx, req.ProjectID, model.MemoryCap)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	memory := make([]model.ChatMessage, 0, len(history))
	for _, m := range history {
		memory = append(memory, model.ChatMessage{
			Role:    m.Role.ToChatRole(),
			Content: m.Content,
		})
	}
	return memory, nil
}

// saveResult 持久化助手消息与产物记录
func (o *Orchestrator) saveResult(ctx context.Context, req *model.RunRequest, response, title, sandboxURL string, files map[string]string) (string, error) {
	if o.Store == nil {
		return "", nil
	}

	fragment := &model.Fragment{
		Title:      title,
		SandboxURL: sandboxURL,
		Files:      files,
	}

	// 文件快照属于锦上添花，失败不阻塞持久化
	if o.Snapshots != nil && len(files) > 0 {
		key, err := o.Snapshots.SaveFragmentFiles(ctx, req.RunID, files)
		if err != nil {
			log.Printf("[Worker] Fragment snapshot failed: run=%s err=%v", req.RunID, err)
		} else {
			fragment.FilesKey = key
		}
	}

	msg := &model.Message{
		ProjectID: req.ProjectID,
		Role:      model.MessageRoleAssistant,
		Type:      model.MessageTypeResult,
		Content:   response,
	}
	if err := o.Store.CreateAssistantMessage(ctx, msg, fragment); err != nil {
		return "", fmt.Errorf("persist result: %w", err)
	}
	return msg.ID, nil
}

// persistErrorMessage 工作流致命失败时的兜底写入
func (o *Orchestrator) persistErrorMessage(ctx context.Context, projectID string) {
	if o.Store == nil || projectID == "" {
		return
	}
	if err := o.Store.CreateErrorMessage(ctx, projectID, "Something went wrong. Please try again."); err != nil {
		log.Printf("[Worker] Failed to persist error message: project=%s err=%v", projectID, err)
	}
}

// sanitizeTitle 清洗产物标题：只保留字母、数字和空白，截断到 50 字符
func sanitizeTitle(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	title := strings.TrimSpace(b.String())
	runes := []rune(title)
	if len(runes) > model.MaxTitleLength {
		title = strings.TrimSpace(string(runes[:model.MaxTitleLength]))
	}
	return title
}
