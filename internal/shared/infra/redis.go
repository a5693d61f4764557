package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vibebuild/internal/shared/cache"
	cacheredis "vibebuild/internal/shared/cache/redis"
	"vibebuild/internal/shared/eventbus"
	eventbusredis "vibebuild/internal/shared/eventbus/redis"
	"vibebuild/internal/shared/queue"
	queueredis "vibebuild/internal/shared/queue/redis"
)

// RedisInfra Redis 基础设施聚合
//
// 事件流、构建队列和阶段缓存共享同一个连接池。
// 三个存储各自只依赖自己的接口，聚合层负责组装
type RedisInfra struct {
	client *redis.Client

	eventBus  *eventbusredis.Store
	queue     *queueredis.Store
	stepCache *cacheredis.Store
}

// NewRedisInfra 从 URL 创建 Redis 基础设施
func NewRedisInfra(redisURL string) (*RedisInfra, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisInfra{
		client:    client,
		eventBus:  eventbusredis.NewStoreFromClient(client),
		queue:     queueredis.NewStoreFromClient(client),
		stepCache: cacheredis.NewStoreFromClient(client),
	}, nil
}

// EventBus Run 事件总线
func (r *RedisInfra) EventBus() eventbus.RunEventBus {
	return r.eventBus
}

// Queue 构建请求队列
func (r *RedisInfra) Queue() queue.BuildQueue {
	return r.queue
}

// StepCache 工作流阶段结果缓存
func (r *RedisInfra) StepCache() cache.StepCache {
	return r.stepCache
}

// Client 底层 Redis 客户端
func (r *RedisInfra) Client() *redis.Client {
	return r.client
}

// Close 关闭共享连接池
func (r *RedisInfra) Close() error {
	return r.client.Close()
}
