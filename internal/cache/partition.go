package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Redis 键格式常量
const (
	keyEntryFormat    = "cache:%s:entry:%s"
	keyIndexFormat    = "cache:%s:keys"
	keyPartitionsList = "cache:partitions"
)

// Entry 单条缓存响应
// 整条 JSON 一次写入,同键重复抓取时整体覆盖
type Entry struct {
	Status      int    `json:"status"`      // 上游响应状态码
	ContentType string `json:"contentType"` // 响应内容类型
	Body        []byte `json:"body"`        // 响应字节
	CapturedAt  int64  `json:"capturedAt"`  // 抓取时间戳
}

// Partition 命名缓存分区
// 分区之间是互不相交的命名空间,名称携带部署纪元
type Partition struct {
	backend Backend
	name    string
}

// Partitions 分区集合管理器
// 负责打开分区、枚举既有分区以及按纪元回收
type Partitions struct {
	backend Backend
}

// NewPartitions 创建分区集合管理器
func NewPartitions(backend Backend) *Partitions {
	return &Partitions{backend: backend}
}

// Open 打开(或登记)一个命名分区
func (partitions *Partitions) Open(ctx context.Context, name string) (*Partition, error) {
	if name == "" {
		return nil, fmt.Errorf("partition name is required")
	}

	if err := partitions.backend.SAdd(ctx, keyPartitionsList, name); err != nil {
		return nil, err
	}

	return &Partition{
		backend: partitions.backend,
		name:    name,
	}, nil
}

// List 枚举所有已登记的分区名
func (partitions *Partitions) List(ctx context.Context) ([]string, error) {
	return partitions.backend.SMembers(ctx, keyPartitionsList)
}

// Delete 删除整个分区及其所有条目
func (partitions *Partitions) Delete(ctx context.Context, name string) error {
	indexKey := fmt.Sprintf(keyIndexFormat, name)

	requestKeys, err := partitions.backend.SMembers(ctx, indexKey)
	if err != nil {
		return err
	}

	entryKeys := make([]string, 0, len(requestKeys)+1)
	for _, requestKey := range requestKeys {
		entryKeys = append(entryKeys, fmt.Sprintf(keyEntryFormat, name, requestKey))
	}
	entryKeys = append(entryKeys, indexKey)

	if err := partitions.backend.Del(ctx, entryKeys...); err != nil {
		return err
	}

	if err := partitions.backend.SRem(ctx, keyPartitionsList, name); err != nil {
		return err
	}

	log.Printf("[Cache] 分区已删除: %s (条目数: %d)", name, len(requestKeys))
	return nil
}

// Name 返回分区名称
func (partition *Partition) Name() string {
	return partition.name
}

// Match 按请求键查找缓存条目
func (partition *Partition) Match(ctx context.Context, requestKey string) (*Entry, bool, error) {
	data, found, err := partition.backend.Get(ctx, partition.entryKey(requestKey))
	if err != nil || !found {
		return nil, false, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	return &entry, true, nil
}

// Put 写入(或覆盖)缓存条目并登记请求键
func (partition *Partition) Put(ctx context.Context, requestKey string, entry *Entry) error {
	if entry.CapturedAt == 0 {
		entry.CapturedAt = time.Now().Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := partition.backend.Set(ctx, partition.entryKey(requestKey), data); err != nil {
		return err
	}

	return partition.backend.SAdd(ctx, partition.indexKey(), requestKey)
}

// entryKey 构建条目键
func (partition *Partition) entryKey(requestKey string) string {
	return fmt.Sprintf(keyEntryFormat, partition.name, requestKey)
}

// indexKey 构建分区请求键索引键
func (partition *Partition) indexKey() string {
	return fmt.Sprintf(keyIndexFormat, partition.name)
}
