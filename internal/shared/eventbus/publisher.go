// Package eventbus 进度发布辅助
//
// Publisher 把编排器对四个主题的发布收敛成少量便捷方法，
// 并承担 fire-and-forget 语义：发布失败只记日志，绝不反馈给编排逻辑。
package eventbus

import (
	"context"
	"log"

	"vibebuild/internal/shared/model"
)

// Publisher Run 进度发布器
//
// bus 为 nil 时所有方法都是空操作（缺失的发布函数不影响编排）
type Publisher struct {
	bus   RunEventBus
	runID string
}

// NewPublisher 创建绑定到单个 Run 的发布器
func NewPublisher(bus RunEventBus, runID string) *Publisher {
	return &Publisher{bus: bus, runID: runID}
}

// publish 内部入口，吞掉所有错误
func (p *Publisher) publish(ctx context.Context, topic Topic, payload interface{}) {
	if p == nil || p.bus == nil {
		return
	}
	if err := p.bus.PublishRunEvent(ctx, p.runID, topic, payload); err != nil {
		log.Printf("[Publisher] publish failed: run=%s topic=%s err=%v", p.runID, topic, err)
	}
}

// Init 发布完整任务列表
func (p *Publisher) Init(ctx context.Context, tasks []model.ProgressTask) {
	p.publish(ctx, TopicProgress, InitPayload{Kind: KindInit, Tasks: tasks})
}

// TaskUpdate 发布单个任务状态跃迁
func (p *Publisher) TaskUpdate(ctx context.Context, taskID string, status model.TaskStatus, detail string) {
	p.publish(ctx, TopicProgress, TaskUpdatePayload{
		Kind:   KindTaskUpdate,
		TaskID: taskID,
		Status: status,
		Detail: detail,
	})
}

// Phase 发布粗粒度阶段状态
func (p *Publisher) Phase(ctx context.Context, label string, status model.TaskStatus, detail string) {
	p.publish(ctx, TopicProgress, PhasePayload{
		Kind:   KindPhase,
		Label:  label,
		Status: status,
		Detail: detail,
	})
}

// Log 发布一行日志
func (p *Publisher) Log(ctx context.Context, line string) {
	p.publish(ctx, TopicLog, LogPayload{Kind: KindLog, Line: line})
}

// Preview 发布预览刷新信号
func (p *Publisher) Preview(ctx context.Context) {
	p.publish(ctx, TopicPreview, PreviewPayload{Kind: KindPreviewUpdate})
}

// Result 发布终态结果
func (p *Publisher) Result(ctx context.Context, payload ResultPayload) {
	payload.Kind = KindResult
	p.publish(ctx, TopicResult, payload)
}
