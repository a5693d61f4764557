package sandbox

import (
	"context"
	"fmt"
	"sync"

	"vibebuild/internal/shared/model"
)

// ============================================================================
// 内存实现（测试用）
// ============================================================================

// FakeSandbox 内存沙箱，仅用于测试
//
// 文件保存在内存里，命令结果可预先编排：
// CommandResults 按命令匹配，未匹配的命令返回空输出、退出码 0
type FakeSandbox struct {
	SandboxID      string
	PreviewDomain  string
	CommandResults map[string]*model.ExecResult
	CommandErr     error

	mu       sync.Mutex
	files    map[string]string
	commands []string
}

// NewFakeSandbox 创建内存沙箱
func NewFakeSandbox(id string) *FakeSandbox {
	return &FakeSandbox{
		SandboxID:      id,
		PreviewDomain:  "preview.test",
		CommandResults: make(map[string]*model.ExecResult),
		files:          make(map[string]string),
	}
}

func (s *FakeSandbox) ID() string { return s.SandboxID }

func (s *FakeSandbox) RunCommand(ctx context.Context, command string) (*model.ExecResult, error) {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()

	if s.CommandErr != nil {
		return nil, s.CommandErr
	}
	if result, ok := s.CommandResults[command]; ok {
		return result, nil
	}
	return &model.ExecResult{ExitCode: 0}, nil
}

func (s *FakeSandbox) WriteFile(ctx context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return nil
}

func (s *FakeSandbox) ReadFile(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("read %s failed (exit 1): no such file", path)
	}
	return content, nil
}

func (s *FakeSandbox) Host(port int) string {
	return fmt.Sprintf("https://%d-%s.%s", port, s.SandboxID, s.PreviewDomain)
}

// Files 返回已写入的文件（测试断言用）
func (s *FakeSandbox) Files() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// Commands 返回已执行的命令（测试断言用）
func (s *FakeSandbox) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// FakeManager 内存沙箱管理器，仅用于测试
type FakeManager struct {
	mu        sync.Mutex
	sandboxes map[string]*FakeSandbox
	created   int
	killed    []string

	CreateErr error
}

// NewFakeManager 创建内存沙箱管理器
func NewFakeManager() *FakeManager {
	return &FakeManager{sandboxes: make(map[string]*FakeSandbox)}
}

func (m *FakeManager) Create(ctx context.Context) (Sandbox, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	sbx := NewFakeSandbox(fmt.Sprintf("sbx-%d", m.created))
	m.sandboxes[sbx.SandboxID] = sbx
	return sbx, nil
}

func (m *FakeManager) Connect(ctx context.Context, id string) (Sandbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sbx, ok := m.sandboxes[id]
	if !ok {
		return nil, fmt.Errorf("sandbox %s not found", id)
	}
	return sbx, nil
}

func (m *FakeManager) Kill(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sandboxes, id)
	m.killed = append(m.killed, id)
	return nil
}

func (m *FakeManager) Close() error { return nil }

// CreatedCount 返回已创建的沙箱数（幂等性断言用）
func (m *FakeManager) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Killed 返回已销毁的沙箱 ID
func (m *FakeManager) Killed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.killed))
	copy(out, m.killed)
	return out
}

// Get 按 ID 取回 FakeSandbox（测试断言用）
func (m *FakeManager) Get(id string) *FakeSandbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sandboxes[id]
}

var (
	_ Sandbox = (*FakeSandbox)(nil)
	_ Manager = (*FakeManager)(nil)
)
