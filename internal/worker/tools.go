package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vibebuild/internal/sandbox"
	"vibebuild/internal/shared/eventbus"
	"vibebuild/internal/shared/model"
)

// errNoSandbox 没有可用沙箱句柄
//
// 工具层唯一的致命错误：沙箱供给失败后 Run 仍会推进，
// 直到循环真正需要沙箱时在这里快速失败
var errNoSandbox = errors.New("no sandbox available")

// toolError 单个工具调用的错误输出，并入轨迹而不是向上抛
type toolError struct {
	Error string `json:"error"`
}

// dispatch 把已校验的决策路由到沙箱
//
// 只有缺失沙箱句柄才返回 error；工具级失败（命令报错、
// 文件读不到）一律折叠成结构化输出写进轨迹
func (o *Orchestrator) dispatch(ctx context.Context, pub *eventbus.Publisher, sbx sandbox.Sandbox, d *model.Decision) (interface{}, error) {
	if sbx == nil {
		return nil, errNoSandbox
	}

	switch d.Tool {
	case model.ToolTerminal:
		return o.runTerminal(ctx, sbx, d.Terminal), nil
	case model.ToolWriteFiles:
		return o.runWriteFiles(ctx, pub, sbx, d.WriteFiles), nil
	case model.ToolReadFiles:
		return o.runReadFiles(ctx, sbx, d.ReadFiles), nil
	default:
		return toolError{Error: fmt.Sprintf("unknown tool %q", d.Tool)}, nil
	}
}

// runTerminal 执行终端命令
func (o *Orchestrator) runTerminal(ctx context.Context, sbx sandbox.Sandbox, in *model.TerminalInput) interface{} {
	result, err := sbx.RunCommand(ctx, in.Command)
	if err != nil {
		return toolError{Error: err.Error()}
	}
	return result
}

// runWriteFiles 顺序写入文件
//
// 路径统一规整为绝对路径；顺序写入避免对同一沙箱会话的
// 交错写造成半成品状态。写入成功后发布预览刷新信号
func (o *Orchestrator) runWriteFiles(ctx context.Context, pub *eventbus.Publisher, sbx sandbox.Sandbox, in *model.WriteFilesInput) interface{} {
	written := 0
	for _, f := range in.Files {
		if err := sbx.WriteFile(ctx, normalizePath(f.Path), f.Content); err != nil {
			return struct {
				Written int    `json:"written"`
				Error   string `json:"error"`
			}{written, err.Error()}
		}
		written++
	}

	if written > 0 {
		pub.Preview(ctx)
	}
	return model.WriteResult{Written: written}
}

// runReadFiles 批量读取文件
//
// 单个路径失败不中断批量：失败条目的 Content 带错误标记，
// 其余路径继续尝试
func (o *Orchestrator) runReadFiles(ctx context.Context, sbx sandbox.Sandbox, in *model.ReadFilesInput) []model.FileContent {
	out := make([]model.FileContent, 0, len(in.Paths))
	for _, p := range in.Paths {
		abs := normalizePath(p)
		content, err := sbx.ReadFile(ctx, abs)
		if err != nil {
			out = append(out, model.FileContent{Path: abs, Content: "Error reading file: " + err.Error()})
			continue
		}
		out = append(out, model.FileContent{Path: abs, Content: content})
	}
	return out
}

// normalizePath 规整为绝对路径
func normalizePath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
