// Package main 构建 Worker 入口
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vibebuild/internal/config"
	"vibebuild/internal/llm"
	"vibebuild/internal/sandbox/docker"
	"vibebuild/internal/shared/infra"
	"vibebuild/internal/shared/objstore"
	"vibebuild/internal/worker"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换 YAML）
	cfg := config.Load()

	log.Printf("Starting Build Worker... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 持久化存储（消息 + 产物）
	store, err := infra.OpenMessageStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to %s", cfg.DatabaseDriver)

	// Redis（事件流 + 构建队列 + 阶段缓存）
	redisInfra, err := infra.NewRedisInfra(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisInfra.Close()
	log.Println("Connected to Redis")

	// Docker 沙箱
	sandboxes, err := docker.NewManager(cfg.Sandbox)
	if err != nil {
		log.Fatalf("Failed to connect to Docker: %v", err)
	}
	defer sandboxes.Close()
	log.Println("Connected to Docker")

	// MinIO 产物快照（可选）
	var snapshots worker.FileSnapshotter
	if cfg.MinIO.Endpoint != "" {
		objClient, err := objstore.NewClient(cfg.MinIO)
		if err != nil {
			log.Printf("MinIO unavailable, fragment snapshots disabled: %v", err)
		} else {
			snapshots = objClient
			log.Println("Connected to MinIO")
		}
	}

	orchestrator := &worker.Orchestrator{
		Bus:       redisInfra.EventBus(),
		Steps:     redisInfra.StepCache(),
		Store:     store,
		Sandboxes: sandboxes,
		LLM:       llm.NewClient(cfg.LLM),
		Snapshots: snapshots,
		Metrics:   worker.NewMetrics("worker", cfg.Worker.ConsumerName),
		AppPort:   cfg.Sandbox.AppPort,
	}

	consumer := &worker.Consumer{
		Queue:        redisInfra.Queue(),
		Orchestrator: orchestrator,
		ConsumerID:   cfg.Worker.ConsumerName,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 指标端点
	go func() {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		if err := http.ListenAndServe(":9091", mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// 优雅关闭：停止领取新消息，等在途构建收尾
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down worker...")
		cancel()
	}()

	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("Consumer error: %v", err)
	}
	log.Println("Worker stopped")
}
