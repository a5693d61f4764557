package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"vibebuild/internal/shared/queue"
)

// Consumer 构建队列消费者
//
// 从消费者组领取构建请求，每条消息交给一个编排器执行。
// 不同 Run 之间完全独立，可以并行；单个 Run 内部严格串行
type Consumer struct {
	Queue        queue.BuildQueue
	Orchestrator *Orchestrator
	ConsumerID   string
	Concurrency  int
	PollInterval time.Duration
}

// Start 启动消费循环，阻塞直到 ctx 取消
func (c *Consumer) Start(ctx context.Context) error {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}

	if err := c.Queue.CreateBuildConsumerGroup(ctx); err != nil {
		return err
	}
	log.Printf("[Worker] Consumer %s started (concurrency=%d)", c.ConsumerID, c.Concurrency)

	sem := make(chan struct{}, c.Concurrency)
	var wg sync.WaitGroup

	for {
		if err := ctx.Err(); err != nil {
			break
		}

		msgs, err := c.Queue.ConsumeBuilds(ctx, c.ConsumerID, int64(c.Concurrency), c.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[Worker] Consume failed: %v", err)
			time.Sleep(c.PollInterval)
			continue
		}

		for _, msg := range msgs {
			sem <- struct{}{}
			wg.Add(1)
			go func(m *queue.BuildMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				c.handle(ctx, m)
			}(msg)
		}
	}

	wg.Wait()
	log.Printf("[Worker] Consumer %s stopped", c.ConsumerID)
	return nil
}

// handle 处理一条构建消息
//
// 成功与失败都确认：失败的 Run 此刻已经持久化了错误消息，
// 重投只会产生重复的失败记录
func (c *Consumer) handle(ctx context.Context, msg *queue.BuildMessage) {
	c.Orchestrator.Metrics.RecordBuildConsumed()

	// 毒消息：request 字段缺失或不可解析时 Request 为 nil，
	// 确认后丢弃，重投不会让它变得可解析
	if msg.Request == nil {
		log.Printf("[Worker] Dropping malformed build message: msg=%s", msg.ID)
		c.ack(ctx, msg.ID)
		return
	}

	result, err := c.Orchestrator.Run(ctx, msg.Request)
	if err != nil {
		log.Printf("[Worker] Run failed: run=%s err=%v", msg.Request.RunID, err)
	} else {
		log.Printf("[Worker] Run complete: run=%s title=%q", result.RunID, result.FragmentTitle)
	}

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, messageID string) {
	if err := c.Queue.AckBuild(ctx, messageID); err != nil {
		log.Printf("[Worker] Ack failed: msg=%s err=%v", messageID, err)
	}
}
