package store

import (
	"context"
	"errors"
)

// 记录状态常量
// 状态只允许单向流转:pending -> synced
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
)

// 公共错误变量
var (
	// ErrStorageUnavailable 持久化存储不可用
	// 对所有依赖写入的功能是致命错误,上层提示"离线存储已禁用"
	ErrStorageUnavailable = errors.New("offline storage unavailable")
)

// Entry 离线待同步记录
type Entry struct {
	ID        int64  `json:"id"`        // 自增ID,创建后不可变更
	Text      string `json:"text"`      // 用户输入内容
	CreatedAt int64  `json:"createdAt"` // 创建时间戳(毫秒)
	Status    string `json:"status"`    // pending | synced
}

// Store 定义离线记录的存储能力
// 写入必须在 InsertPending 返回前落盘,UI 才能视为提交成功
type Store interface {
	// InsertPending 追加一条 pending 记录并返回分配的ID
	InsertPending(ctx context.Context, text string, createdAt int64) (Entry, error)
	// ListByStatus 返回指定状态的全部记录,顺序不作保证;无匹配时返回空切片
	ListByStatus(ctx context.Context, status string) ([]Entry, error)
	// MarkSynced 将指定ID集合置为 synced;不存在的ID静默忽略
	// 单条记录原子,整批不保证原子:中途崩溃残留的 pending 由下一轮同步补偿
	MarkSynced(ctx context.Context, ids []int64) error
	// ClearAll 清空全部记录;仅响应用户显式操作,同步链路不得调用
	ClearAll(ctx context.Context) error
}
