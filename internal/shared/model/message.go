// Package model 定义核心数据模型
//
// message.go 包含会话与持久化消息的数据模型定义：
//   - ChatMessage：LLM 会话中的一条消息（role/content）
//   - Message：持久化的项目消息记录
//   - Fragment：随助手消息一起保存的生成产物（标题、URL、文件快照）
package model

import (
	"strings"
	"time"
)

// ============================================================================
// ChatMessage - 会话消息
// ============================================================================

// ChatRole 会话角色
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage LLM 会话中的一条消息
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// MemoryCap 从存储加载会话上下文时保留的最近消息条数
const MemoryCap = 20

// ============================================================================
// Message - 持久化消息
// ============================================================================

// MessageRole 持久化消息的角色
//
// 与 ChatRole 刻意分开：存储层使用大写枚举（历史数据如此），
// 加载进会话时通过 ToChatRole 转为小写
type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
)

// ToChatRole 转换为会话角色（小写）
func (r MessageRole) ToChatRole() ChatRole {
	return ChatRole(strings.ToLower(string(r)))
}

// MessageType 消息类型
type MessageType string

const (
	// MessageTypeResult 正常结果消息
	MessageTypeResult MessageType = "RESULT"

	// MessageTypeError 错误消息：工作流致命失败时写入，
	// 保证轮询方总能观察到终止状态
	MessageTypeError MessageType = "ERROR"
)

// Message 持久化的项目消息记录
type Message struct {
	ID        string      `json:"id" bson:"_id" db:"id"`
	ProjectID string      `json:"project_id" bson:"project_id" db:"project_id"`
	Role      MessageRole `json:"role" bson:"role" db:"role"`
	Type      MessageType `json:"type" bson:"type" db:"type"`
	Content   string      `json:"content" bson:"content" db:"content"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// ============================================================================
// Fragment - 生成产物
// ============================================================================

// MaxTitleLength 产物标题最大长度（清洗后按字符截断）
const MaxTitleLength = 50

// Fragment 随助手消息保存的生成产物
//
// 一条助手消息最多挂一个 Fragment，两者在同一事务中写入
type Fragment struct {
	ID         string            `json:"id" bson:"_id" db:"id"`
	MessageID  string            `json:"message_id" bson:"message_id" db:"message_id"`
	Title      string            `json:"title" bson:"title" db:"title"`
	SandboxURL string            `json:"sandbox_url" bson:"sandbox_url" db:"sandbox_url"`
	Files      map[string]string `json:"files,omitempty" bson:"files,omitempty" db:"files"`

	// FilesKey 对象存储中文件快照的 key（可选，MinIO 未配置时为空）
	FilesKey string `json:"files_key,omitempty" bson:"files_key,omitempty" db:"files_key"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}
