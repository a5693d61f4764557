// Package eventbus 事件总线 mock 实现
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// NoOpEventBus - 空操作的 EventBus 实现（用于测试）
// ============================================================================

// NoOpEventBus 是一个不做任何操作的 EventBus 实现
type NoOpEventBus struct{}

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

// Close 关闭事件总线
func (e *NoOpEventBus) Close() error {
	return nil
}

func (e *NoOpEventBus) PublishRunEvent(ctx context.Context, runID string, topic Topic, payload interface{}) error {
	return nil
}
func (e *NoOpEventBus) GetRunEvents(ctx context.Context, runID string, fromID string, count int64) ([]*RunEvent, error) {
	return []*RunEvent{}, nil
}
func (e *NoOpEventBus) GetRunEventCount(ctx context.Context, runID string) (int64, error) {
	return 0, nil
}
func (e *NoOpEventBus) SubscribeRunEvents(ctx context.Context, runID string) (<-chan *RunEvent, error) {
	ch := make(chan *RunEvent)
	close(ch)
	return ch, nil
}
func (e *NoOpEventBus) DeleteRunEvents(ctx context.Context, runID string) error {
	return nil
}

// 确保 NoOpEventBus 实现了 EventBus 接口
var _ EventBus = (*NoOpEventBus)(nil)

// ============================================================================
// MemoryEventBus - 内存 EventBus 实现（测试断言发布顺序用）
// ============================================================================

// MemoryEventBus 按发布顺序记录事件并推送给订阅者
type MemoryEventBus struct {
	mu     sync.Mutex
	seq    int
	events map[string][]*RunEvent
	subs   map[string][]chan *RunEvent
}

// NewMemoryEventBus 创建 MemoryEventBus 实例
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		events: make(map[string][]*RunEvent),
		subs:   make(map[string][]chan *RunEvent),
	}
}

// Close 关闭事件总线
func (e *MemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, chs := range e.subs {
		for _, ch := range chs {
			close(ch)
		}
	}
	e.subs = make(map[string][]chan *RunEvent)
	return nil
}

func (e *MemoryEventBus) PublishRunEvent(ctx context.Context, runID string, topic Topic, payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	event := &RunEvent{
		ID:        fmt.Sprintf("%d-0", e.seq),
		RunID:     runID,
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	e.events[runID] = append(e.events[runID], event)

	for _, ch := range e.subs[runID] {
		select {
		case ch <- event:
		default: // 慢订阅者不阻塞发布方
		}
	}
	return nil
}

func (e *MemoryEventBus) GetRunEvents(ctx context.Context, runID string, fromID string, count int64) ([]*RunEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*RunEvent
	for _, ev := range e.events[runID] {
		if fromID != "" && fromID != "0" && CompareEventIDs(ev.ID, fromID) <= 0 {
			continue
		}
		out = append(out, ev)
		if count > 0 && int64(len(out)) >= count {
			break
		}
	}
	return out, nil
}

func (e *MemoryEventBus) GetRunEventCount(ctx context.Context, runID string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int64(len(e.events[runID])), nil
}

func (e *MemoryEventBus) SubscribeRunEvents(ctx context.Context, runID string) (<-chan *RunEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan *RunEvent, 100)
	e.subs[runID] = append(e.subs[runID], ch)
	return ch, nil
}

func (e *MemoryEventBus) DeleteRunEvents(ctx context.Context, runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.events, runID)
	return nil
}

// Events 返回某个 Run 已记录的事件（测试用）
func (e *MemoryEventBus) Events(runID string) []*RunEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*RunEvent, len(e.events[runID]))
	copy(out, e.events[runID])
	return out
}

// EventsByTopic 返回某个 Run 指定主题的事件（测试用）
func (e *MemoryEventBus) EventsByTopic(runID string, topic Topic) []*RunEvent {
	var out []*RunEvent
	for _, ev := range e.Events(runID) {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// 确保 MemoryEventBus 实现了 EventBus 接口
var _ EventBus = (*MemoryEventBus)(nil)
