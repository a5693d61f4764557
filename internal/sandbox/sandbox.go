// Package sandbox 定义构建沙箱抽象
//
// 沙箱是一个隔离的 Next.js 工作环境，智能体通过工具在其中
// 执行命令和读写文件。具体实现在 docker/ 子包
package sandbox

import (
	"context"

	"vibebuild/internal/shared/model"
)

// Sandbox 单个沙箱实例
type Sandbox interface {
	// ID 返回沙箱标识，可用于 Connect 重连
	ID() string

	// RunCommand 在沙箱中执行 shell 命令，返回输出与退出码。
	// 命令失败（非零退出码）不是 error，体现在 ExitCode 中
	RunCommand(ctx context.Context, command string) (*model.ExecResult, error)

	// WriteFile 写入文件，必要时创建父目录
	WriteFile(ctx context.Context, path, content string) error

	// ReadFile 读取文件内容
	ReadFile(ctx context.Context, path string) (string, error)

	// Host 返回指定端口的外部访问地址
	Host(port int) string
}

// Manager 沙箱生命周期管理
type Manager interface {
	// Create 创建并启动一个新沙箱
	Create(ctx context.Context) (Sandbox, error)

	// Connect 按 ID 连接既有沙箱，沙箱未运行时先启动。
	// 幂等：重复调用返回同一沙箱的句柄
	Connect(ctx context.Context, id string) (Sandbox, error)

	// Kill 销毁沙箱，尽力而为
	Kill(ctx context.Context, id string) error

	// Close 释放管理器资源
	Close() error
}
