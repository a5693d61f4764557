// Package repository Message/Fragment 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vibebuild/internal/shared/model"
	"vibebuild/internal/shared/storage"
)

// ListRecentMessages 读取项目最近 n 条消息，按创建时间从旧到新返回
//
// SQL 取最近 n 条（倒序 LIMIT），再在内存中反转为旧→新
func (s *Store) ListRecentMessages(ctx context.Context, projectID string, n int) ([]*model.Message, error) {
	if n <= 0 {
		n = 20
	}
	query := s.rebind(`SELECT id, project_id, role, type, content, created_at, updated_at
			  FROM messages WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`)
	rows, err := s.db.QueryContext(ctx, query, projectID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// 反转为旧→新
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CreateAssistantMessage 创建助手消息，可选地附带一个生成产物
//
// 消息和产物在同一事务中写入，保证可见性上的原子性
func (s *Store) CreateAssistantMessage(ctx context.Context, msg *model.Message, fragment *model.Fragment) error {
	fillMessageDefaults(msg)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO messages (id, project_id, role, type, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if _, err := tx.ExecContext(ctx, query,
		msg.ID, msg.ProjectID, msg.Role, msg.Type, msg.Content, msg.CreatedAt, msg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if fragment != nil {
		if fragment.ID == "" {
			fragment.ID = uuid.New().String()
		}
		fragment.MessageID = msg.ID
		if fragment.CreatedAt.IsZero() {
			fragment.CreatedAt = msg.CreatedAt
		}
		if fragment.UpdatedAt.IsZero() {
			fragment.UpdatedAt = fragment.CreatedAt
		}

		var filesJSON *string
		if fragment.Files != nil {
			b, err := json.Marshal(fragment.Files)
			if err != nil {
				return fmt.Errorf("failed to marshal fragment files: %w", err)
			}
			str := string(b)
			filesJSON = &str
		}

		query = s.rebind(`
			INSERT INTO fragments (id, message_id, title, sandbox_url, files, files_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if _, err := tx.ExecContext(ctx, query,
			fragment.ID, fragment.MessageID, fragment.Title, fragment.SandboxURL,
			filesJSON, fragment.FilesKey, fragment.CreatedAt, fragment.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert fragment: %w", err)
		}
	}

	return tx.Commit()
}

// CreateErrorMessage 创建错误内容的助手消息
func (s *Store) CreateErrorMessage(ctx context.Context, projectID, content string) error {
	msg := &model.Message{
		ProjectID: projectID,
		Role:      model.MessageRoleAssistant,
		Type:      model.MessageTypeError,
		Content:   content,
	}
	fillMessageDefaults(msg)

	query := s.rebind(`
		INSERT INTO messages (id, project_id, role, type, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ProjectID, msg.Role, msg.Type, msg.Content, msg.CreatedAt, msg.UpdatedAt)
	return err
}

// fillMessageDefaults 补齐消息默认字段
func fillMessageDefaults(msg *model.Message) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Role == "" {
		msg.Role = model.MessageRoleAssistant
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeResult
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}
}

// scanMessage 辅助函数
func scanMessage(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Message, error) {
	msg := &model.Message{}
	err := scanner.Scan(
		&msg.ID, &msg.ProjectID, &msg.Role, &msg.Type, &msg.Content,
		&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// scanMessages 批量扫描
func scanMessages(rows *sql.Rows) ([]*model.Message, error) {
	var msgs []*model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// 确保 Store 实现了 storage.MessageStore 接口
var _ storage.MessageStore = (*Store)(nil)
