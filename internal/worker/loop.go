package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"vibebuild/internal/sandbox"
	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
)

// exhaustedSummary 迭代耗尽且智能体未确认完成时的合成总结
const exhaustedSummary = "Iteration budget reached. The application should be ready, but the agent did not confirm finalization."

// loopResult 智能体循环的记忆化结果
type loopResult struct {
	TaskSummary string            `json:"taskSummary"`
	Files       map[string]string `json:"files,omitempty"`
	Iterations  int               `json:"iterations"`
}

// runAgentLoop 执行智能体决策循环
//
// 每轮：请求决策 → 校验（失败替换为兜底决策，仍消耗一次迭代）→
// 执行工具 → 追加轨迹和转录。终态为 finalized（收到 final 决策）
// 或 exhausted（迭代耗尽，合成默认总结）。
// 轨迹与转录严格按迭代有序：第 i+1 轮的提示词总是反映第 i 轮的效果
func (o *Orchestrator) runAgentLoop(ctx context.Context, pub *eventbus.Publisher, req *model.RunRequest, sbx sandbox.Sandbox, memory []model.ChatMessage, agentPrompt string) (*loopResult, error) {
	agentMessages := make([]model.ChatMessage, 0, len(memory)+1)
	agentMessages = append(agentMessages, memory...)
	agentMessages = append(agentMessages, model.ChatMessage{
		Role: model.ChatRoleUser,
		Content: "The user wants to build an application in a Next.js sandbox.\n" +
			"TASK:\n" + req.Prompt + "\n" +
			"Technical context: the user is watching the logs in real time.",
	})

	var trace []model.TraceEntry
	files := make(map[string]string)
	taskSummary := ""
	iterations := 0

	for i := 1; i <= req.MaxIterations; i++ {
		iterations = i
		pub.Log(ctx, fmt.Sprintf("[Agent] Iteration %d/%d...", i, req.MaxIterations))

		turns := append(agentMessages, model.ChatMessage{
			Role:    model.ChatRoleUser,
			Content: statePrompt(trace),
		})

		decision, err := o.LLM.Decide(ctx, req.Model, agentPrompt, turns)
		if err != nil {
			// 降级链整体失败才会走到这里
			return nil, fmt.Errorf("agent decision: %w", err)
		}
		if decision.Fallback {
			pub.Log(ctx, "[System] Malformed agent decision. Retrying with a file read.")
		}

		if decision.Type == model.DecisionFinal {
			taskSummary = decision.TaskSummary
			pub.Log(ctx, "[Agent] Work complete.")
			break
		}

		pub.Log(ctx, fmt.Sprintf("> %s: %s", decision.Tool, decision.Summary))
		o.Metrics.RecordToolDispatch(string(decision.Tool))

		output, err := o.dispatch(ctx, pub, sbx, decision)
		if err != nil {
			return nil, fmt.Errorf("tool dispatch: %w", err)
		}
		recordWrittenFiles(files, decision)

		outputJSON, _ := json.Marshal(output)
		trace = append(trace, model.TraceEntry{
			Tool:   decision.Tool,
			Input:  decision.Input,
			Output: outputJSON,
		})

		decisionJSON, _ := json.Marshal(decision)
		agentMessages = append(agentMessages,
			model.ChatMessage{Role: model.ChatRoleAssistant, Content: string(decisionJSON)},
			model.ChatMessage{Role: model.ChatRoleUser, Content: "Tool result:\n" + truncate(string(outputJSON), model.MaxToolOutputChars)},
		)

		if decision.TaskUpdate != nil {
			pub.TaskUpdate(ctx, decision.TaskUpdate.TaskID, decision.TaskUpdate.Status, decision.TaskUpdate.Detail)
		}
	}

	if taskSummary == "" {
		taskSummary = exhaustedSummary
	}

	return &loopResult{
		TaskSummary: taskSummary,
		Files:       files,
		Iterations:  iterations,
	}, nil
}

// statePrompt 合成携带最近轨迹和可用工具的提示词轮次
func statePrompt(trace []model.TraceEntry) string {
	window := trace
	if len(window) > model.TraceWindow {
		window = window[len(window)-model.TraceWindow:]
	}
	traceJSON, _ := json.MarshalIndent(window, "", "  ")

	return fmt.Sprintf("Current state (last %d actions):\n%s\n\n"+
		"Available tools: terminal, createOrUpdateFiles, readFiles.\n"+
		"Decision (JSON)?", model.TraceWindow, traceJSON)
}

// recordWrittenFiles 把写文件决策的内容并入产物文件集合
func recordWrittenFiles(files map[string]string, d *model.Decision) {
	if d.Tool != model.ToolWriteFiles || d.WriteFiles == nil {
		return
	}
	for _, f := range d.WriteFiles.Files {
		files[normalizePath(f.Path)] = f.Content
	}
}

// truncate 按字节截断字符串
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
