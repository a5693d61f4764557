package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibebuild/internal/shared/model"
)

// 提示词示范的 JSON 键必须和决策解码器一致，
// 否则模型照着示范输出也触发不了对应分支
func TestDefaultAgentPromptMatchesDecisionSchema(t *testing.T) {
	assert.Contains(t, DefaultAgentPrompt, `"taskUpdate"`)
	assert.Contains(t, DefaultAgentPrompt, `"taskId"`)
	assert.NotContains(t, DefaultAgentPrompt, `"task_update"`)
	assert.Contains(t, DefaultAgentPrompt, `"task_summary"`)

	// 提示词里的进度上报示范原样可解码
	raw := `{"type": "tool", "tool": "terminal", "input": {"command": "npm install"},
		"summary": "Installing packages",
		"taskUpdate": {"taskId": "agent-loop", "status": "running", "detail": "Writing components"}}`
	d, err := model.ParseDecision([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, d.TaskUpdate)
	assert.Equal(t, "agent-loop", d.TaskUpdate.TaskID)
	assert.Equal(t, "Writing components", d.TaskUpdate.Detail)

	// 终态示范用的键同样要对上
	final, err := model.ParseDecision([]byte(`{"type": "final", "task_summary": "Built it"}`))
	require.NoError(t, err)
	assert.Equal(t, "Built it", final.TaskSummary)

	for _, tool := range []string{"terminal", "createOrUpdateFiles", "readFiles"} {
		assert.True(t, strings.Contains(DefaultAgentPrompt, tool), "prompt must name tool %s", tool)
	}
}
