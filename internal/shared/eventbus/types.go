// Package eventbus 事件总线类型定义
package eventbus

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"vibebuild/internal/shared/model"
)

// ============================================================================
// 频道与主题
// ============================================================================

// Topic 事件主题
type Topic string

const (
	TopicProgress Topic = "progress"
	TopicLog      Topic = "log"
	TopicResult   Topic = "result"
	TopicPreview  Topic = "preview"
)

// Topics 全部主题（订阅令牌签发时使用）
var Topics = []Topic{TopicProgress, TopicLog, TopicResult, TopicPreview}

// RunChannel 由 runId 确定性派生频道标识
func RunChannel(runID string) string {
	return fmt.Sprintf("run:%s", runID)
}

// ============================================================================
// 事件 ID
// ============================================================================

// CompareEventIDs 比较两个 Stream 事件 ID（<ms>-<seq> 格式）
//
// 事件 ID 必须按数值比较，字符串比较会把 "10-0" 排在 "9-0"
// 前面。返回 -1、0、1；无法解析的部分按 0 处理
func CompareEventIDs(a, b string) int {
	ams, aseq := splitEventID(a)
	bms, bseq := splitEventID(b)
	switch {
	case ams < bms:
		return -1
	case ams > bms:
		return 1
	case aseq < bseq:
		return -1
	case aseq > bseq:
		return 1
	}
	return 0
}

func splitEventID(id string) (ms, seq uint64) {
	part := id
	if i := strings.IndexByte(id, '-'); i >= 0 {
		part = id[:i]
		seq, _ = strconv.ParseUint(id[i+1:], 10, 64)
	}
	ms, _ = strconv.ParseUint(part, 10, 64)
	return ms, seq
}

// ============================================================================
// 事件类型
// ============================================================================

// RunEvent Run 进度事件
type RunEvent struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Topic     Topic       `json:"topic"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ============================================================================
// 载荷类型 - 每个主题的 kind 变体
// ============================================================================

// PayloadKind 载荷变体标识
type PayloadKind string

const (
	KindInit          PayloadKind = "init"
	KindTaskUpdate    PayloadKind = "task_update"
	KindPhase         PayloadKind = "phase"
	KindLog           PayloadKind = "log"
	KindPreviewUpdate PayloadKind = "preview_update"
	KindResult        PayloadKind = "result"
)

// InitPayload progress 主题：完整任务列表
type InitPayload struct {
	Kind  PayloadKind          `json:"kind"`
	Tasks []model.ProgressTask `json:"tasks"`
}

// TaskUpdatePayload progress 主题：单个任务状态跃迁
type TaskUpdatePayload struct {
	Kind   PayloadKind      `json:"kind"`
	TaskID string           `json:"taskId"`
	Status model.TaskStatus `json:"status"`
	Detail string           `json:"detail,omitempty"`
}

// PhasePayload progress 主题：粗粒度阶段状态（错误上报用）
type PhasePayload struct {
	Kind   PayloadKind      `json:"kind"`
	Label  string           `json:"label"`
	Status model.TaskStatus `json:"status"`
	Detail string           `json:"detail,omitempty"`
}

// LogPayload log 主题：一行文本
type LogPayload struct {
	Kind PayloadKind `json:"kind"`
	Line string      `json:"line"`
}

// PreviewPayload preview 主题：仅信号，无载荷
type PreviewPayload struct {
	Kind PayloadKind `json:"kind"`
}

// ResultPayload result 主题：终态载荷
type ResultPayload struct {
	Kind          PayloadKind `json:"kind"`
	FragmentTitle string      `json:"fragmentTitle"`
	Response      string      `json:"response"`
	SandboxURL    string      `json:"sandboxUrl"`
	TaskSummary   string      `json:"taskSummary"`
}

// ============================================================================
// Key 前缀和常量
// ============================================================================

const (
	// KeyRunEvents Redis Stream key 前缀
	KeyRunEvents = "run_events:"

	// MaxStreamLength Stream 最大长度
	MaxStreamLength = 1000
)
