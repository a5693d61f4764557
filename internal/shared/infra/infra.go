// Package infra 基础设施装配层
//
// 提供进程入口用的基础设施初始化：
//   - OpenMessageStore：按配置的驱动打开消息/产物存储
//   - RedisInfra：事件流、构建队列、阶段缓存共享一个 Redis 连接池
//
// 业务包只依赖各自的接口，装配只发生在这里和 cmd/ 入口
package infra

import (
	"fmt"

	"vibebuild/internal/config"
	"vibebuild/internal/shared/storage"
	"vibebuild/internal/shared/storage/driver/postgres"
	"vibebuild/internal/shared/storage/driver/sqlite"
	"vibebuild/internal/shared/storage/mongostore"
	"vibebuild/internal/shared/storage/repository"
)

// defaultMongoDatabase MongoDB 库名
const defaultMongoDatabase = "vibebuild"

// OpenMessageStore 按配置打开持久化存储
//
// 支持的驱动：postgres、sqlite、mongodb。
// SQL 驱动在打开后自动迁移表结构
func OpenMessageStore(cfg *config.Config) (storage.PersistentStore, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		dialect := postgres.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return repository.NewStore(db, dialect), nil

	case "sqlite":
		db, err := sqlite.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		dialect := sqlite.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return repository.NewStore(db, dialect), nil

	case "mongodb":
		store, err := mongostore.NewStore(cfg.DatabaseURL, defaultMongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("open mongodb: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}
