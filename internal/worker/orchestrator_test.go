package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
)

func TestRunHappyPath(t *testing.T) {
	env := newTestEnv()
	env.llm.decisions = []*model.Decision{
		toolDecision(model.ToolWriteFiles, &model.WriteFilesInput{
			Files: []model.FileEntry{{Path: "app/page.tsx", Content: "export default function Page() {}"}},
		}, "Writing the landing page."),
		finalDecision("Built a landing page with a hero section."),
	}
	snapshots := &memorySnapshots{}
	o := env.orchestrator()
	o.Snapshots = snapshots

	result, err := o.Run(context.Background(), newRunRequest("run-happy-1"))
	require.NoError(t, err)
	require.Equal(t, "run-happy-1", result.RunID)
	require.Equal(t, "Landing Page", result.FragmentTitle)
	require.Equal(t, "https://3000-sbx-1.preview.test", result.SandboxURL)

	// progress 首事件是完整任务列表
	progress := env.bus.EventsByTopic("run-happy-1", eventbus.TopicProgress)
	require.NotEmpty(t, progress)
	init, ok := progress[0].Payload.(eventbus.InitPayload)
	require.True(t, ok)
	require.Len(t, init.Tasks, 7)
	require.Equal(t, "get-sandbox-id", init.Tasks[0].ID)

	// 工具调用出现在日志流里
	lines := logLines(env.bus, "run-happy-1")
	require.Contains(t, strings.Join(lines, "\n"), "> createOrUpdateFiles: Writing the landing page.")

	// 文件写入触发一次预览刷新信号
	require.Len(t, env.bus.EventsByTopic("run-happy-1", eventbus.TopicPreview), 1)

	// 恰好一个终态事件
	results := env.bus.EventsByTopic("run-happy-1", eventbus.TopicResult)
	require.Len(t, results, 1)
	payload, ok := results[0].Payload.(eventbus.ResultPayload)
	require.True(t, ok)
	require.Equal(t, "Landing Page", payload.FragmentTitle)
	require.Equal(t, "Your app is ready.", payload.Response)
	require.Equal(t, "Built a landing page with a hero section.", payload.TaskSummary)

	// 助手消息和产物已持久化
	msgs := env.store.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, model.MessageRoleAssistant, msgs[0].Role)
	require.Equal(t, model.MessageTypeResult, msgs[0].Type)
	require.Equal(t, "Your app is ready.", msgs[0].Content)

	frags := env.store.Fragments()
	require.Len(t, frags, 1)
	require.Equal(t, "Landing Page", frags[0].Title)
	require.Equal(t, "export default function Page() {}", frags[0].Files["/app/page.tsx"])
	require.Equal(t, "fragments/run-happy-1.json", frags[0].FilesKey)

	// 沙箱用完即毁
	require.Equal(t, []string{"sbx-1"}, env.manager.Killed())
}

func TestRunImmediateFinal(t *testing.T) {
	env := newTestEnv()
	env.llm.decisions = []*model.Decision{finalDecision("Nothing to do.")}

	_, err := env.orchestrator().Run(context.Background(), newRunRequest("run-final-1"))
	require.NoError(t, err)

	// 一次决策，零次工具调用
	require.Equal(t, 1, env.llm.DecideCalls())
	lines := strings.Join(logLines(env.bus, "run-final-1"), "\n")
	require.NotContains(t, lines, "> ")
	require.Contains(t, lines, "[Agent] Work complete.")
}

func TestRunReplayIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.llm.decisions = []*model.Decision{finalDecision("Done.")}
	o := env.orchestrator()

	first, err := o.Run(context.Background(), newRunRequest("run-replay-1"))
	require.NoError(t, err)
	decideCalls := env.llm.DecideCalls()

	// 同一 runId 重放：所有阶段命中记忆化结果
	second, err := o.Run(context.Background(), newRunRequest("run-replay-1"))
	require.NoError(t, err)

	require.Equal(t, 1, env.manager.CreatedCount())
	require.Equal(t, decideCalls, env.llm.DecideCalls())
	require.Equal(t, first.FragmentTitle, second.FragmentTitle)
	require.Equal(t, first.SandboxURL, second.SandboxURL)
}

func TestRunSandboxProvisioningFailure(t *testing.T) {
	env := newTestEnv()
	env.manager.CreateErr = errors.New("no capacity")
	env.llm.decisions = []*model.Decision{
		toolDecision(model.ToolTerminal, &model.TerminalInput{Command: "ls"}, "Listing files."),
	}

	_, err := env.orchestrator().Run(context.Background(), newRunRequest("run-nosbx-1"))
	require.Error(t, err)
	require.ErrorContains(t, err, "no sandbox available")

	// 沙箱任务标记为 error，工作流终止对订阅方可见
	var sawSandboxError bool
	for _, u := range taskUpdates(env.bus, "run-nosbx-1") {
		if u.TaskID == "get-sandbox-id" && u.Status == model.TaskError {
			sawSandboxError = true
		}
	}
	require.True(t, sawSandboxError)
	require.Contains(t, strings.Join(logLines(env.bus, "run-nosbx-1"), "\n"), "[System] Workflow failed")

	// 兜底错误消息已持久化
	msgs := env.store.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, model.MessageTypeError, msgs[0].Type)
}

func TestRunFailureKillsSandbox(t *testing.T) {
	env := newTestEnv()
	env.llm.decideErr = errors.New("all model tiers failed")

	_, err := env.orchestrator().Run(context.Background(), newRunRequest("run-kill-1"))
	require.Error(t, err)

	// 失败路径同样销毁已供给的沙箱
	require.Equal(t, 1, env.manager.CreatedCount())
	require.Equal(t, []string{"sbx-1"}, env.manager.Killed())
}

func TestRunConcurrentRunsUseDefaultPrompts(t *testing.T) {
	env := newTestEnv()
	env.llm.decisions = []*model.Decision{
		finalDecision("Done."),
		finalDecision("Done."),
	}

	// 留空 Prompts/AppPort，默认值必须按 Run 解析，不能回写共享状态
	o := env.orchestrator()
	o.Prompts = Prompts{}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	results := make([]*model.RunResult, 2)
	for i, runID := range []string{"run-conc-1", "run-conc-2"} {
		wg.Add(1)
		go func(i int, runID string) {
			defer wg.Done()
			results[i], errs[i] = o.Run(context.Background(), newRunRequest(runID))
		}(i, runID)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		require.Contains(t, results[i].SandboxURL, "https://3000-sbx-")
	}
	require.Equal(t, Prompts{}, o.Prompts)
	require.Zero(t, o.AppPort)
}

func TestRunSandboxFailureWithoutToolsSucceeds(t *testing.T) {
	env := newTestEnv()
	env.manager.CreateErr = errors.New("no capacity")
	env.llm.decisions = []*model.Decision{finalDecision("No sandbox needed.")}

	// 智能体从未碰沙箱，供给失败不影响结果
	result, err := env.orchestrator().Run(context.Background(), newRunRequest("run-nosbx-2"))
	require.NoError(t, err)
	require.Empty(t, result.SandboxURL)
}

func TestRunValidatesRequest(t *testing.T) {
	env := newTestEnv()
	_, err := env.orchestrator().Run(context.Background(), &model.RunRequest{RunID: "abc", UserID: "u", Prompt: "p"})
	require.Error(t, err)
	// 校验失败前不发布任何事件
	require.Empty(t, env.bus.Events("abc"))
}

func TestRunSnapshotFailureDoesNotBlockPersist(t *testing.T) {
	env := newTestEnv()
	env.llm.decisions = []*model.Decision{
		toolDecision(model.ToolWriteFiles, &model.WriteFilesInput{
			Files: []model.FileEntry{{Path: "/app/page.tsx", Content: "x"}},
		}, "Writing."),
		finalDecision("Done."),
	}
	o := env.orchestrator()
	o.Snapshots = &failingSnapshots{err: errors.New("minio down")}

	_, err := o.Run(context.Background(), newRunRequest("run-snap-1"))
	require.NoError(t, err)

	frags := env.store.Fragments()
	require.Len(t, frags, 1)
	require.Empty(t, frags[0].FilesKey)
	require.Equal(t, "x", frags[0].Files["/app/page.tsx"])
}

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Landing Page", "Landing Page"},
		{`"Todo App!"`, "Todo App"},
		{"  My-Cool_App  ", "MyCoolApp"},
		{strings.Repeat("a", 60), strings.Repeat("a", 50)},
		{"### Header ###", "Header"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, sanitizeTitle(tc.in), "input %q", tc.in)
	}
}

func TestLoadMemoryFromStore(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.store.CreateErrorMessage(context.Background(), "project-1", "old failure"))
	env.llm.decisions = []*model.Decision{finalDecision("Done.")}
	o := env.orchestrator()

	memory, err := o.loadMemory(context.Background(), newRunRequest("run-mem-1"))
	require.NoError(t, err)
	require.Len(t, memory, 1)
	require.Equal(t, model.ChatRoleAssistant, memory[0].Role)
	require.Equal(t, "old failure", memory[0].Content)
}

func TestLoadMemoryPrefersProvidedMessages(t *testing.T) {
	env := newTestEnv()
	req := newRunRequest("run-mem-2")
	req.PreviousMessages = []model.ChatMessage{{Role: model.ChatRoleUser, Content: "earlier prompt"}}

	memory, err := env.orchestrator().loadMemory(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, req.PreviousMessages, memory)
}
