package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"offline-gateway/internal/database"
)

// MySQLStore 基于 MySQL 的离线记录存储实现
type MySQLStore struct {
	database *database.MySQLDB
}

// NewMySQLStore 创建 MySQL 存储实例
// 幂等地初始化表结构,初始化失败返回 ErrStorageUnavailable
func NewMySQLStore(db *database.MySQLDB) (*MySQLStore, error) {
	if db == nil {
		return nil, ErrStorageUnavailable
	}

	if err := db.InitTables(); err != nil {
		log.Printf("[Store] 初始化表结构失败: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &MySQLStore{database: db}, nil
}

// InsertPending 追加一条 pending 记录
func (store *MySQLStore) InsertPending(ctx context.Context, text string, createdAt int64) (Entry, error) {
	query := `INSERT INTO entries (text, created_at, status) VALUES (?, ?, ?)`

	result, err := store.database.ExecContext(ctx, query, text, createdAt, StatusPending)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read inserted id: %w", err)
	}

	return Entry{
		ID:        id,
		Text:      text,
		CreatedAt: createdAt,
		Status:    StatusPending,
	}, nil
}

// ListByStatus 返回指定状态的全部记录
func (store *MySQLStore) ListByStatus(ctx context.Context, status string) ([]Entry, error) {
	query := `SELECT id, text, created_at, status FROM entries WHERE status=?`

	rows, err := store.database.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)

	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Text, &entry.CreatedAt, &entry.Status); err != nil {
			log.Printf("[Store] 扫描记录失败: %v", err)
			continue
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// MarkSynced 将指定ID集合置为 synced
// WHERE status='pending' 保证状态只能单向流转
func (store *MySQLStore) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, StatusSynced)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"UPDATE entries SET status=? WHERE id IN (%s) AND status='pending'",
		placeholders,
	)

	if _, err := store.database.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark entries synced: %w", err)
	}

	return nil
}

// ClearAll 清空全部记录
func (store *MySQLStore) ClearAll(ctx context.Context) error {
	if _, err := store.database.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	log.Printf("[Store] 全部记录已清空")
	return nil
}
