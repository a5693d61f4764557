package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"vibebuild/internal/sandbox"
	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
)

func TestDispatchWithoutSandboxFails(t *testing.T) {
	env := newTestEnv()
	pub := eventbus.NewPublisher(env.bus, "run-tools-1")

	_, err := env.orchestrator().dispatch(context.Background(), pub, nil,
		toolDecision(model.ToolTerminal, &model.TerminalInput{Command: "ls"}, "Listing."))
	require.ErrorIs(t, err, errNoSandbox)
}

func TestDispatchTerminal(t *testing.T) {
	env := newTestEnv()
	sbx := sandbox.NewFakeSandbox("sbx-t")
	sbx.CommandResults["npm install"] = &model.ExecResult{Stdout: "added 12 packages", ExitCode: 0}
	pub := eventbus.NewPublisher(env.bus, "run-tools-2")

	out, err := env.orchestrator().dispatch(context.Background(), pub, sbx,
		toolDecision(model.ToolTerminal, &model.TerminalInput{Command: "npm install"}, "Installing."))
	require.NoError(t, err)

	result, ok := out.(*model.ExecResult)
	require.True(t, ok)
	require.Equal(t, "added 12 packages", result.Stdout)
	require.Equal(t, []string{"npm install"}, sbx.Commands())
}

func TestDispatchTerminalTransportError(t *testing.T) {
	env := newTestEnv()
	sbx := sandbox.NewFakeSandbox("sbx-t")
	sbx.CommandErr = errors.New("connection reset")
	pub := eventbus.NewPublisher(env.bus, "run-tools-3")

	// 传输层错误被捕获为工具级错误，不向上抛
	out, err := env.orchestrator().dispatch(context.Background(), pub, sbx,
		toolDecision(model.ToolTerminal, &model.TerminalInput{Command: "ls"}, "Listing."))
	require.NoError(t, err)

	te, ok := out.(toolError)
	require.True(t, ok)
	require.Contains(t, te.Error, "connection reset")
}

func TestWriteFilesNormalizesPaths(t *testing.T) {
	env := newTestEnv()
	sbx := sandbox.NewFakeSandbox("sbx-w")
	pub := eventbus.NewPublisher(env.bus, "run-tools-4")

	out, err := env.orchestrator().dispatch(context.Background(), pub, sbx,
		toolDecision(model.ToolWriteFiles, &model.WriteFilesInput{
			Files: []model.FileEntry{
				{Path: "app/page.tsx", Content: "page"},
				{Path: "/app/layout.tsx", Content: "layout"},
			},
		}, "Writing."))
	require.NoError(t, err)

	result, ok := out.(model.WriteResult)
	require.True(t, ok)
	require.Equal(t, 2, result.Written)

	files := sbx.Files()
	require.Equal(t, "page", files["/app/page.tsx"])
	require.Equal(t, "layout", files["/app/layout.tsx"])

	// 成功写入触发预览信号
	require.Len(t, env.bus.EventsByTopic("run-tools-4", eventbus.TopicPreview), 1)
}

func TestReadFilesPartialFailure(t *testing.T) {
	env := newTestEnv()
	sbx := sandbox.NewFakeSandbox("sbx-r")
	require.NoError(t, sbx.WriteFile(context.Background(), "/app/page.tsx", "page"))
	pub := eventbus.NewPublisher(env.bus, "run-tools-5")

	out, err := env.orchestrator().dispatch(context.Background(), pub, sbx,
		toolDecision(model.ToolReadFiles, &model.ReadFilesInput{
			Paths: []string{"app/page.tsx", "/app/missing.tsx"},
		}, "Reading."))
	require.NoError(t, err)

	contents, ok := out.([]model.FileContent)
	require.True(t, ok)
	require.Len(t, contents, 2)
	require.Equal(t, "/app/page.tsx", contents[0].Path)
	require.Equal(t, "page", contents[0].Content)
	require.Equal(t, "/app/missing.tsx", contents[1].Path)
	require.Contains(t, contents[1].Content, "Error reading file:")
}

func TestNormalizePath(t *testing.T) {
	require.Equal(t, "/app/page.tsx", normalizePath("app/page.tsx"))
	require.Equal(t, "/app/page.tsx", normalizePath("/app/page.tsx"))
}
