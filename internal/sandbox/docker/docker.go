// Package docker 实现 Docker 沙箱运行时
//
// 使用官方 github.com/moby/moby/client 库。
// 每个构建沙箱是一个从配置镜像启动的容器，应用端口随机映射到宿主机
package docker

import (
	"context"
	"fmt"
	"log"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"

	"vibebuild/internal/config"
	"vibebuild/internal/sandbox"
)

// labelManaged 标记本系统创建的沙箱容器
const labelManaged = "vibebuild.sandbox"

// Manager Docker 沙箱管理器
type Manager struct {
	client *client.Client
	cfg    config.SandboxConfig
}

// NewManager 创建 Docker 沙箱管理器
func NewManager(cfg config.SandboxConfig) (*Manager, error) {
	cli, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Manager{client: cli, cfg: cfg}, nil
}

// Ping 检查 Docker 连接
func (m *Manager) Ping(ctx context.Context) error {
	_, err := m.client.Ping(ctx, client.PingOptions{})
	return err
}

// Close 关闭管理器
func (m *Manager) Close() error {
	return m.client.Close()
}

// Create 创建并启动一个新沙箱容器
func (m *Manager) Create(ctx context.Context) (sandbox.Sandbox, error) {
	name := fmt.Sprintf("vibebuild-sbx-%s", uuid.New().String()[:8])

	port := network.MustParsePort(fmt.Sprintf("%d/tcp", m.cfg.AppPort))
	opts := client.ContainerCreateOptions{
		Name:  name,
		Image: m.cfg.Image,
		Config: &container.Config{
			WorkingDir:   m.cfg.WorkDir,
			ExposedPorts: network.PortSet{port: struct{}{}},
			Labels:       map[string]string{labelManaged: "true"},
		},
		HostConfig: &container.HostConfig{
			PortBindings: network.PortMap{
				// 宿主机端口留空，由 Docker 随机分配
				port: []network.PortBinding{{HostPort: ""}},
			},
		},
	}

	result, err := m.client.ContainerCreate(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox container: %w", err)
	}

	if _, err := m.client.ContainerStart(ctx, result.ID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start sandbox container: %w", err)
	}

	log.Printf("[sandbox] Created container %s (%s)", name, result.ID[:12])
	return &dockerSandbox{manager: m, id: result.ID}, nil
}

// Connect 按 ID 连接既有沙箱容器
//
// 幂等：容器已在运行时直接返回句柄，已停止时先启动
func (m *Manager) Connect(ctx context.Context, id string) (sandbox.Sandbox, error) {
	result, err := m.client.ContainerInspect(ctx, id, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("sandbox %s not found", id)
		}
		return nil, fmt.Errorf("failed to inspect sandbox %s: %w", id, err)
	}

	if !result.Container.State.Running {
		if _, err := m.client.ContainerStart(ctx, id, client.ContainerStartOptions{}); err != nil {
			return nil, fmt.Errorf("failed to restart sandbox %s: %w", id, err)
		}
		log.Printf("[sandbox] Restarted stopped container %s", id[:12])
	}

	return &dockerSandbox{manager: m, id: id}, nil
}

// Kill 强制删除沙箱容器，尽力而为
func (m *Manager) Kill(ctx context.Context, id string) error {
	_, err := m.client.ContainerRemove(ctx, id, client.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}

// hostPortFor 查询容器应用端口映射到的宿主机端口
func (m *Manager) hostPortFor(ctx context.Context, id string, containerPort int) (string, error) {
	result, err := m.client.ContainerInspect(ctx, id, client.ContainerInspectOptions{})
	if err != nil {
		return "", err
	}
	port := network.MustParsePort(fmt.Sprintf("%d/tcp", containerPort))
	bindings := result.Container.NetworkSettings.Ports[port]
	if len(bindings) == 0 {
		return "", fmt.Errorf("no host binding for port %d", containerPort)
	}
	return bindings[0].HostPort, nil
}

// shortID 构建预览域名用的短容器 ID
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

var _ sandbox.Manager = (*Manager)(nil)
