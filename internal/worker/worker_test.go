package worker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"vibebuild/internal/sandbox"
	"vibebuild/internal/shared/cache"
	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
	"vibebuild/internal/shared/storage"
)

// ============================================================================
// 测试替身
// ============================================================================

// fakeLLM 按脚本回放决策序列
type fakeLLM struct {
	mu sync.Mutex

	decisions []*model.Decision
	decideErr error

	title    string
	response string

	decideCalls    int
	summarizeCalls int
	lastTurns      []model.ChatMessage
}

func (f *fakeLLM) Decide(ctx context.Context, requestModel, system string, turns []model.ChatMessage) (*model.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decideCalls++
	f.lastTurns = turns
	if f.decideErr != nil {
		return nil, f.decideErr
	}
	if len(f.decisions) == 0 {
		return finalDecision("no more scripted decisions"), nil
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d, nil
}

func (f *fakeLLM) Summarize(ctx context.Context, requestModel, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summarizeCalls++
	if strings.Contains(system, "title") {
		return f.title, nil
	}
	return f.response, nil
}

func (f *fakeLLM) DecideCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decideCalls
}

// failingSnapshots 快照存储总是失败
type failingSnapshots struct{ err error }

func (s *failingSnapshots) SaveFragmentFiles(ctx context.Context, runID string, files map[string]string) (string, error) {
	return "", s.err
}

// memorySnapshots 记录快照调用
type memorySnapshots struct {
	mu    sync.Mutex
	saved map[string]map[string]string
}

func (s *memorySnapshots) SaveFragmentFiles(ctx context.Context, runID string, files map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]map[string]string)
	}
	s.saved[runID] = files
	return "fragments/" + runID + ".json", nil
}

// ============================================================================
// 构造辅助
// ============================================================================

func toolDecision(tool model.ToolName, input interface{}, summary string) *model.Decision {
	raw, _ := json.Marshal(input)
	d := &model.Decision{
		Type:    model.DecisionTool,
		Tool:    tool,
		Input:   raw,
		Summary: summary,
	}
	switch in := input.(type) {
	case *model.TerminalInput:
		d.Terminal = in
	case *model.WriteFilesInput:
		d.WriteFiles = in
	case *model.ReadFilesInput:
		d.ReadFiles = in
	}
	return d
}

func finalDecision(summary string) *model.Decision {
	return &model.Decision{Type: model.DecisionFinal, TaskSummary: summary}
}

// testEnv 内存依赖装配
type testEnv struct {
	bus     *eventbus.MemoryEventBus
	steps   *cache.MemoryCache
	store   *storage.MemoryStore
	manager *sandbox.FakeManager
	llm     *fakeLLM
}

func newTestEnv() *testEnv {
	return &testEnv{
		bus:     eventbus.NewMemoryEventBus(),
		steps:   cache.NewMemoryCache(),
		store:   storage.NewMemoryStore(),
		manager: sandbox.NewFakeManager(),
		llm: &fakeLLM{
			title:    "Landing Page",
			response: "Your app is ready.",
		},
	}
}

func (e *testEnv) orchestrator() *Orchestrator {
	return &Orchestrator{
		Bus:       e.bus,
		Steps:     e.steps,
		Store:     e.store,
		Sandboxes: e.manager,
		LLM:       e.llm,
		Prompts: Prompts{
			Agent:    "agent system",
			Title:    "title system",
			Response: "response system",
		},
	}
}

func newRunRequest(runID string) *model.RunRequest {
	return &model.RunRequest{
		RunID:     runID,
		UserID:    "user-1",
		ProjectID: "project-1",
		Prompt:    "Build a landing page",
	}
}

// logLines 收集一个 Run 的全部日志行
func logLines(bus *eventbus.MemoryEventBus, runID string) []string {
	var lines []string
	for _, ev := range bus.EventsByTopic(runID, eventbus.TopicLog) {
		if p, ok := ev.Payload.(eventbus.LogPayload); ok {
			lines = append(lines, p.Line)
		}
	}
	return lines
}

// taskUpdates 收集 progress 主题中的任务跃迁
func taskUpdates(bus *eventbus.MemoryEventBus, runID string) []eventbus.TaskUpdatePayload {
	var out []eventbus.TaskUpdatePayload
	for _, ev := range bus.EventsByTopic(runID, eventbus.TopicProgress) {
		if p, ok := ev.Payload.(eventbus.TaskUpdatePayload); ok {
			out = append(out, p)
		}
	}
	return out
}
