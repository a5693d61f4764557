// Package main 实时事件网关入口
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibebuild/internal/config"
	"vibebuild/internal/gateway"
	"vibebuild/internal/shared/infra"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting Realtime Gateway... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// Redis（事件流只读）
	redisInfra, err := infra.NewRedisInfra(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisInfra.Close()
	log.Println("Connected to Redis")

	tokens := gateway.TokenConfig{Secret: cfg.Auth.JWTSecret}
	if cfg.Auth.TokenTTL != "" {
		ttl, err := time.ParseDuration(cfg.Auth.TokenTTL)
		if err != nil {
			log.Fatalf("Invalid auth.token_ttl %q: %v", cfg.Auth.TokenTTL, err)
		}
		tokens.TTL = ttl
	}
	if !tokens.Enabled() {
		log.Println("JWT_SECRET not set, subscription token validation disabled")
	}

	srv := gateway.NewServer(redisInfra.EventBus(), tokens, gateway.NewMetrics("gateway"))

	httpSrv := &http.Server{
		Addr:        ":" + cfg.Gateway.Port,
		Handler:     srv.Routes(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gateway...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Gateway listening on :%s", cfg.Gateway.Port)
	if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Gateway stopped")
}
