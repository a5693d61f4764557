package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/client"

	"vibebuild/internal/shared/model"
)

// dockerSandbox 单个沙箱容器的句柄
type dockerSandbox struct {
	manager *Manager
	id      string
}

func (s *dockerSandbox) ID() string {
	return s.id
}

// RunCommand 在沙箱中执行 shell 命令
//
// 非零退出码不是 error，调用方根据 ExitCode 决定如何处置
func (s *dockerSandbox) RunCommand(ctx context.Context, command string) (*model.ExecResult, error) {
	return s.exec(ctx, []string{"sh", "-c", command}, "")
}

// WriteFile 写入文件，先创建父目录，内容经 stdin 传入
func (s *dockerSandbox) WriteFile(ctx context.Context, path, content string) error {
	cmd := []string{"sh", "-c", fmt.Sprintf(`mkdir -p "$(dirname %q)" && cat > %q`, path, path)}
	result, err := s.exec(ctx, cmd, content)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("write %s failed (exit %d): %s", path, result.ExitCode, result.Stderr)
	}
	return nil
}

// ReadFile 读取文件内容
func (s *dockerSandbox) ReadFile(ctx context.Context, path string) (string, error) {
	result, err := s.exec(ctx, []string{"cat", path}, "")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("read %s failed (exit %d): %s", path, result.ExitCode, result.Stderr)
	}
	return result.Stdout, nil
}

// Host 返回端口的外部访问地址
//
// 配置了预览域名时走反向代理风格的 https 地址，
// 否则退回到宿主机端口映射
func (s *dockerSandbox) Host(port int) string {
	domain := s.manager.cfg.PreviewDomain
	if domain != "" {
		return fmt.Sprintf("https://%d-%s.%s", port, shortID(s.id), domain)
	}
	hostPort, err := s.manager.hostPortFor(context.Background(), s.id, port)
	if err != nil {
		return fmt.Sprintf("http://localhost:%d", port)
	}
	return fmt.Sprintf("http://localhost:%s", hostPort)
}

// exec 创建并执行 exec，分离 stdout/stderr 并取回退出码
func (s *dockerSandbox) exec(ctx context.Context, cmd []string, stdin string) (*model.ExecResult, error) {
	cli := s.manager.client

	execResult, err := cli.ExecCreate(ctx, s.id, client.ExecCreateOptions{
		Cmd:          cmd,
		WorkingDir:   s.manager.cfg.WorkDir,
		AttachStdin:  stdin != "",
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := cli.ExecAttach(ctx, execResult.ID, client.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec: %w", err)
	}
	defer attachResp.Close()

	if stdin != "" {
		if _, err := io.WriteString(attachResp.Conn, stdin); err != nil {
			return nil, fmt.Errorf("failed to write stdin: %w", err)
		}
		if err := attachResp.CloseWrite(); err != nil {
			return nil, fmt.Errorf("failed to close stdin: %w", err)
		}
	}

	// 输出流是 stdout/stderr 复用的，按帧拆开
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return nil, fmt.Errorf("failed to read exec output: %w", err)
	}

	inspectResp, err := cli.ExecInspect(ctx, execResult.ID, client.ExecInspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	return &model.ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspectResp.ExitCode,
	}, nil
}
