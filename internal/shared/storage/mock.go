package storage

import (
	"context"
	"sync"
	"time"

	"vibebuild/internal/shared/model"

	"github.com/google/uuid"
)

// ============================================================================
// 内存实现（测试用）
// ============================================================================

// MemoryStore 内存持久化存储，仅用于测试
type MemoryStore struct {
	mu        sync.RWMutex
	messages  []*model.Message
	fragments map[string]*model.Fragment // fragment ID → fragment
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fragments: make(map[string]*model.Fragment),
	}
}

func (s *MemoryStore) ListRecentMessages(ctx context.Context, projectID string, n int) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		n = 20
	}
	var matched []*model.Message
	for _, m := range s.messages {
		if m.ProjectID == projectID {
			matched = append(matched, m)
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	out := make([]*model.Message, len(matched))
	copy(out, matched)
	return out, nil
}

func (s *MemoryStore) CreateAssistantMessage(ctx context.Context, msg *model.Message, fragment *model.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Role == "" {
		msg.Role = model.MessageRoleAssistant
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeResult
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, msg)

	if fragment != nil {
		if fragment.ID == "" {
			fragment.ID = uuid.New().String()
		}
		fragment.MessageID = msg.ID
		s.fragments[fragment.ID] = fragment
	}
	return nil
}

func (s *MemoryStore) CreateErrorMessage(ctx context.Context, projectID, content string) error {
	return s.CreateAssistantMessage(ctx, &model.Message{
		ProjectID: projectID,
		Role:      model.MessageRoleAssistant,
		Type:      model.MessageTypeError,
		Content:   content,
	}, nil)
}

func (s *MemoryStore) GetFragment(ctx context.Context, id string) (*model.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fragments[id], nil
}

func (s *MemoryStore) GetFragmentByMessage(ctx context.Context, messageID string) (*model.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.fragments {
		if f.MessageID == messageID {
			return f, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Close() error { return nil }

// Messages 返回所有已写入的消息（测试断言用）
func (s *MemoryStore) Messages() []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Fragments 返回所有已写入的产物（测试断言用）
func (s *MemoryStore) Fragments() []*model.Fragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Fragment, 0, len(s.fragments))
	for _, f := range s.fragments {
		out = append(out, f)
	}
	return out
}

var _ PersistentStore = (*MemoryStore)(nil)
