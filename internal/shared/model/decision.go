// Package model 定义核心数据模型
//
// decision.go 包含 Agent 决策相关的数据模型定义：
//   - Decision：LLM 每轮产出的结构化决策（tool 或 final）
//   - ToolName / 各工具的强类型输入
//   - TraceEntry：工具调用轨迹条目
package model

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// ToolName - 工具枚举
// ============================================================================

// ToolName 可用工具
type ToolName string

const (
	// ToolTerminal 在沙箱中执行终端命令
	ToolTerminal ToolName = "terminal"

	// ToolWriteFiles 创建或更新沙箱中的文件
	ToolWriteFiles ToolName = "createOrUpdateFiles"

	// ToolReadFiles 读取沙箱中的文件
	ToolReadFiles ToolName = "readFiles"
)

// ToolNames 全部工具名（提示词与校验共用）
var ToolNames = []ToolName{ToolTerminal, ToolWriteFiles, ToolReadFiles}

// ============================================================================
// 工具输入 - 按工具名区分的强类型变体
// ============================================================================

// TerminalInput terminal 工具输入
type TerminalInput struct {
	Command string `json:"command"`
}

// FileEntry 单个文件（路径 + 内容）
type FileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFilesInput createOrUpdateFiles 工具输入
type WriteFilesInput struct {
	Files []FileEntry `json:"files"`
}

// ReadFilesInput readFiles 工具输入
type ReadFilesInput struct {
	Paths []string `json:"paths"`
}

// ============================================================================
// 工具输出
// ============================================================================

// ExecResult terminal 工具输出
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// WriteResult createOrUpdateFiles 工具输出
type WriteResult struct {
	Written int `json:"written"`
}

// FileContent readFiles 工具输出的单个条目
//
// 单个文件读取失败不会中断批量读取：失败条目的 Content
// 携带错误标记字符串，其余路径继续尝试
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// TraceEntry 工具调用轨迹条目
type TraceEntry struct {
	Tool   ToolName        `json:"tool"`
	Input  json.RawMessage `json:"input"`
	Output json.RawMessage `json:"output"`
}

// 轨迹与转录的边界
const (
	// TraceWindow 重新注入提示词的最近轨迹条数
	TraceWindow = 8

	// MaxToolOutputChars 工具输出并入转录前的截断长度
	MaxToolOutputChars = 4000
)

// ============================================================================
// Decision - Agent 决策
// ============================================================================

// DecisionType 决策类型
type DecisionType string

const (
	DecisionTool  DecisionType = "tool"
	DecisionFinal DecisionType = "final"
)

// TaskUpdate 决策附带的可选任务状态更新
type TaskUpdate struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Decision LLM 每轮产出的结构化决策
//
// 两个变体：
//   - tool：携带工具名、强类型输入和一句话摘要
//   - final：携带任务总结，终止循环
//
// Input 保留原始 JSON；强类型解码结果缓存在对应的字段里，
// 由 ParseDecision 填充
type Decision struct {
	Type    DecisionType    `json:"type"`
	Summary string          `json:"summary,omitempty"`
	Tool    ToolName        `json:"tool,omitempty"`
	Input   json.RawMessage `json:"input,omitempty"`

	TaskUpdate  *TaskUpdate `json:"taskUpdate,omitempty"`
	TaskSummary string      `json:"task_summary,omitempty"`

	// 解码后的强类型输入（最多一个非 nil，与 Tool 对应）
	Terminal   *TerminalInput   `json:"-"`
	WriteFiles *WriteFilesInput `json:"-"`
	ReadFiles  *ReadFilesInput  `json:"-"`

	// Fallback 标记这是兜底决策而非模型产出，循环据此记录纠正日志
	Fallback bool `json:"-"`
}

// FallbackDecision 确定性兜底决策
//
// LLM 返回了响应但 JSON 不符合模式时使用；绝不向上抛错
func FallbackDecision() *Decision {
	input := ReadFilesInput{Paths: []string{"/app/page.tsx"}}
	raw, _ := json.Marshal(input)
	return &Decision{
		Type:      DecisionTool,
		Tool:      ToolReadFiles,
		Input:     raw,
		Summary:   "Auto-correction: reading file.",
		ReadFiles: &input,
		Fallback:  true,
	}
}

// ParseDecision 解析并校验决策载荷
//
// 任何不符合模式的载荷都返回错误，由调用方替换为 FallbackDecision。
// 校验规则：
//   - type 必须是 tool 或 final
//   - tool 变体：tool 必须是已知工具，input 必须能解码为对应的强类型输入
//   - final 变体：task_summary 非空
func ParseDecision(raw []byte) (*Decision, error) {
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decision is not valid JSON: %w", err)
	}

	switch d.Type {
	case DecisionFinal:
		if d.TaskSummary == "" {
			return nil, fmt.Errorf("final decision missing task_summary")
		}
		return &d, nil

	case DecisionTool:
		if d.Summary == "" {
			return nil, fmt.Errorf("tool decision missing summary")
		}
		if err := d.decodeInput(); err != nil {
			return nil, err
		}
		if d.TaskUpdate != nil {
			if d.TaskUpdate.TaskID == "" || !d.TaskUpdate.Status.Valid() {
				return nil, fmt.Errorf("invalid taskUpdate")
			}
		}
		return &d, nil

	default:
		return nil, fmt.Errorf("unknown decision type %q", d.Type)
	}
}

// decodeInput 按工具名解码强类型输入
func (d *Decision) decodeInput() error {
	if len(d.Input) == 0 {
		return fmt.Errorf("tool decision missing input")
	}
	switch d.Tool {
	case ToolTerminal:
		var in TerminalInput
		if err := json.Unmarshal(d.Input, &in); err != nil {
			return fmt.Errorf("invalid terminal input: %w", err)
		}
		d.Terminal = &in
	case ToolWriteFiles:
		var in WriteFilesInput
		if err := json.Unmarshal(d.Input, &in); err != nil {
			return fmt.Errorf("invalid createOrUpdateFiles input: %w", err)
		}
		d.WriteFiles = &in
	case ToolReadFiles:
		var in ReadFilesInput
		if err := json.Unmarshal(d.Input, &in); err != nil {
			return fmt.Errorf("invalid readFiles input: %w", err)
		}
		d.ReadFiles = &in
	default:
		return fmt.Errorf("unknown tool %q", d.Tool)
	}
	return nil
}
