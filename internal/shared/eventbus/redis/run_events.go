// Package redis RunEvents 事件总线操作
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"vibebuild/internal/shared/eventbus"
)

// runEventsKey Stream key：run_events:<channel>（channel = run:<runId>）
func runEventsKey(runID string) string {
	return eventbus.KeyRunEvents + eventbus.RunChannel(runID)
}

// PublishRunEvent 发布 Run 事件
//
// XADD 的单调递增 ID 保证同一 Run 的事件对读取方严格有序
func (s *Store) PublishRunEvent(ctx context.Context, runID string, topic eventbus.Topic, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: runEventsKey(runID),
		MaxLen: eventbus.MaxStreamLength,
		Approx: true,
		Values: map[string]interface{}{
			"topic":     string(topic),
			"timestamp": time.Now().Format(time.RFC3339Nano),
			"payload":   string(payloadJSON),
		},
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}

	log.Printf("[Redis/EventBus] Published event: run=%s id=%s topic=%s", runID, id, topic)
	return nil
}

// decodeRunEvent 从 Stream 消息还原事件
func decodeRunEvent(runID string, msg redis.XMessage) *eventbus.RunEvent {
	event := &eventbus.RunEvent{
		ID:    msg.ID,
		RunID: runID,
	}
	if topic, ok := msg.Values["topic"].(string); ok {
		event.Topic = eventbus.Topic(topic)
	}
	if ts, ok := msg.Values["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = t
		}
	}
	if payloadStr, ok := msg.Values["payload"].(string); ok {
		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(payloadStr), &payload); err == nil {
			event.Payload = payload
		}
	}
	return event
}

// GetRunEvents 获取 Run 事件列表（断线重连回放用）
//
// fromID 是调用方最后见过的事件 ID，回放不含它本身
func (s *Store) GetRunEvents(ctx context.Context, runID string, fromID string, count int64) ([]*eventbus.RunEvent, error) {
	start := "0"
	if fromID != "" && fromID != "0" {
		start = "(" + fromID
	}

	msgs, err := s.client.XRange(ctx, runEventsKey(runID), start, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}

	var events []*eventbus.RunEvent
	for _, msg := range msgs {
		events = append(events, decodeRunEvent(runID, msg))
		if count > 0 && int64(len(events)) >= count {
			break
		}
	}
	return events, nil
}

// GetRunEventCount 获取事件数量
func (s *Store) GetRunEventCount(ctx context.Context, runID string) (int64, error) {
	return s.client.XLen(ctx, runEventsKey(runID)).Result()
}

// SubscribeRunEvents 订阅 Run 事件
//
// 从订阅时刻开始只投递新事件（$ 起点）；更早的事件由 GetRunEvents 回放
func (s *Store) SubscribeRunEvents(ctx context.Context, runID string) (<-chan *eventbus.RunEvent, error) {
	key := runEventsKey(runID)
	ch := make(chan *eventbus.RunEvent, 100)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   10,
				Block:   5 * time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Redis/EventBus] Run event subscription error: %v", err)
				return
			}

			for _, stream := range streams {
				for _, msg := range stream.Messages {
					select {
					case ch <- decodeRunEvent(runID, msg):
						lastID = msg.ID
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// DeleteRunEvents 删除 Run 事件流
func (s *Store) DeleteRunEvents(ctx context.Context, runID string) error {
	return s.client.Del(ctx, runEventsKey(runID)).Err()
}
