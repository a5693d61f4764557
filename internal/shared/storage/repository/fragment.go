// Package repository Fragment 查询操作
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"vibebuild/internal/shared/model"
	"vibebuild/internal/shared/storage"
)

const fragmentColumns = `id, message_id, title, sandbox_url, files, files_key, created_at, updated_at`

// GetFragment 按 ID 获取产物
func (s *Store) GetFragment(ctx context.Context, id string) (*model.Fragment, error) {
	query := s.rebind(`SELECT ` + fragmentColumns + ` FROM fragments WHERE id = $1`)
	row := s.db.QueryRowContext(ctx, query, id)
	fragment, err := scanFragment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return fragment, err
}

// GetFragmentByMessage 按消息 ID 获取产物
func (s *Store) GetFragmentByMessage(ctx context.Context, messageID string) (*model.Fragment, error) {
	query := s.rebind(`SELECT ` + fragmentColumns + ` FROM fragments WHERE message_id = $1`)
	row := s.db.QueryRowContext(ctx, query, messageID)
	fragment, err := scanFragment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return fragment, err
}

// scanFragment 辅助函数
func scanFragment(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Fragment, error) {
	fragment := &model.Fragment{}
	var files *string
	err := scanner.Scan(
		&fragment.ID, &fragment.MessageID, &fragment.Title, &fragment.SandboxURL,
		&files, &fragment.FilesKey, &fragment.CreatedAt, &fragment.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if files != nil && *files != "" {
		if err := json.Unmarshal([]byte(*files), &fragment.Files); err != nil {
			return nil, err
		}
	}
	return fragment, nil
}

// 确保 Store 实现了 storage.FragmentStore 接口
var _ storage.FragmentStore = (*Store)(nil)
