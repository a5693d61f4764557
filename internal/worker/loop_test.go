package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
)

func runLoop(t *testing.T, env *testEnv, req *model.RunRequest) (*loopResult, error) {
	t.Helper()
	pub := eventbus.NewPublisher(env.bus, req.RunID)
	sbx, err := env.manager.Create(context.Background())
	require.NoError(t, err)
	return env.orchestrator().runAgentLoop(context.Background(), pub, req, sbx, nil, "agent system")
}

func TestLoopFallbackConsumesIteration(t *testing.T) {
	env := newTestEnv()
	env.llm.decisions = []*model.Decision{
		model.FallbackDecision(),
		finalDecision("Recovered."),
	}
	req := newRunRequest("run-loop-1")
	req.ApplyDefaults()

	result, err := runLoop(t, env, req)
	require.NoError(t, err)

	// 兜底决策也消耗一次迭代，且执行了确定性的文件读取
	require.Equal(t, 2, result.Iterations)
	lines := strings.Join(logLines(env.bus, "run-loop-1"), "\n")
	require.Contains(t, lines, "[System] Malformed agent decision. Retrying with a file read.")
	require.Contains(t, lines, "> readFiles")
}

func TestLoopExhaustion(t *testing.T) {
	env := newTestEnv()
	// 脚本里只有工具决策，永远不收敛
	for i := 0; i < 5; i++ {
		env.llm.decisions = append(env.llm.decisions,
			toolDecision(model.ToolTerminal, &model.TerminalInput{Command: "npm install"}, "Installing."))
	}
	req := newRunRequest("run-loop-2")
	req.MaxIterations = 3

	result, err := runLoop(t, env, req)
	require.NoError(t, err)

	// 最多 n 次决策，耗尽后合成默认总结
	require.Equal(t, 3, env.llm.DecideCalls())
	require.Equal(t, 3, result.Iterations)
	require.Equal(t, exhaustedSummary, result.TaskSummary)
}

func TestLoopDecideFailureIsFatal(t *testing.T) {
	env := newTestEnv()
	env.llm.decideErr = errors.New("all model tiers failed")
	req := newRunRequest("run-loop-3")
	req.ApplyDefaults()

	_, err := runLoop(t, env, req)
	require.Error(t, err)
	require.ErrorContains(t, err, "agent decision")
}

func TestLoopRecordsWrittenFiles(t *testing.T) {
	env := newTestEnv()
	env.llm.decisions = []*model.Decision{
		toolDecision(model.ToolWriteFiles, &model.WriteFilesInput{
			Files: []model.FileEntry{{Path: "app/page.tsx", Content: "v1"}},
		}, "First write."),
		toolDecision(model.ToolWriteFiles, &model.WriteFilesInput{
			Files: []model.FileEntry{{Path: "/app/page.tsx", Content: "v2"}},
		}, "Overwrite."),
		finalDecision("Done."),
	}
	req := newRunRequest("run-loop-4")
	req.ApplyDefaults()

	result, err := runLoop(t, env, req)
	require.NoError(t, err)

	// 相对路径和绝对路径指向同一文件，后写覆盖先写
	require.Len(t, result.Files, 1)
	require.Equal(t, "v2", result.Files["/app/page.tsx"])
}

func TestLoopForwardsTaskUpdates(t *testing.T) {
	env := newTestEnv()
	d := toolDecision(model.ToolTerminal, &model.TerminalInput{Command: "npm run build"}, "Building.")
	d.TaskUpdate = &model.TaskUpdate{TaskID: "agent-loop", Status: model.TaskRunning, Detail: "compiling"}
	env.llm.decisions = []*model.Decision{d, finalDecision("Done.")}
	req := newRunRequest("run-loop-5")
	req.ApplyDefaults()

	_, err := runLoop(t, env, req)
	require.NoError(t, err)

	var forwarded bool
	for _, u := range taskUpdates(env.bus, "run-loop-5") {
		if u.TaskID == "agent-loop" && u.Detail == "compiling" {
			forwarded = true
		}
	}
	require.True(t, forwarded)
}

func TestStatePromptWindowsTrace(t *testing.T) {
	var trace []model.TraceEntry
	for i := 0; i < model.TraceWindow+4; i++ {
		in, _ := json.Marshal(model.TerminalInput{Command: "echo " + strings.Repeat("x", i)})
		trace = append(trace, model.TraceEntry{Tool: model.ToolTerminal, Input: in})
	}

	prompt := statePrompt(trace)

	// 只重放最近 8 条：最早的命令不出现在提示词里
	require.NotContains(t, prompt, `"echo "`)
	require.Contains(t, prompt, "echo "+strings.Repeat("x", model.TraceWindow+3))
	require.Contains(t, prompt, "Available tools: terminal, createOrUpdateFiles, readFiles.")
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "abcde", truncate("abcdefgh", 5))
	require.Len(t, truncate(strings.Repeat("y", 10000), model.MaxToolOutputChars), model.MaxToolOutputChars)
}
