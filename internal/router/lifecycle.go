package router

import (
	"context"
	"errors"
	"fmt"
	"log"

	"offline-gateway/internal/cache"
)

// 公共错误变量
var (
	// ErrPrecacheIncomplete App Shell 预缓存未全部成功
	// 安装整体失败,绝不带着残缺的 shell 激活
	ErrPrecacheIncomplete = errors.New("app shell precache incomplete")
)

// Lifecycle 安装与激活生命周期
// 安装负责整体预缓存 App Shell,激活负责按纪元回收旧分区
type Lifecycle struct {
	fetcher    cache.Fetcher
	partitions *cache.Partitions
	shell      *cache.Partition
	shellPaths []string
	allowed    map[string]bool
}

// NewLifecycle 创建生命周期管理器
func NewLifecycle(
	fetcher cache.Fetcher,
	partitions *cache.Partitions,
	shell *cache.Partition,
	shellPaths []string,
	allowedPartitions []string,
) *Lifecycle {
	allowed := make(map[string]bool, len(allowedPartitions))
	for _, name := range allowedPartitions {
		allowed[name] = true
	}

	return &Lifecycle{
		fetcher:    fetcher,
		partitions: partitions,
		shell:      shell,
		shellPaths: shellPaths,
		allowed:    allowed,
	}
}

// Install 预缓存整个 App Shell 清单
// 先全部抓取再统一写入:任何一个资产失败则整体失败,不落半个 shell
func (lifecycle *Lifecycle) Install(ctx context.Context) error {
	fetched := make(map[string]*cache.Response, len(lifecycle.shellPaths))

	for _, shellPath := range lifecycle.shellPaths {
		response, err := lifecycle.fetcher.Fetch(ctx, shellPath)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrecacheIncomplete, shellPath, err)
		}

		if response.Status < 200 || response.Status > 299 {
			return fmt.Errorf("%w: %s: upstream status %d",
				ErrPrecacheIncomplete, shellPath, response.Status)
		}

		fetched[shellPath] = response
	}

	for shellPath, response := range fetched {
		entry := &cache.Entry{
			Status:      response.Status,
			ContentType: response.ContentType,
			Body:        response.Body,
		}

		if err := lifecycle.shell.Put(ctx, shellPath, entry); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrecacheIncomplete, shellPath, err)
		}
	}

	log.Printf("[Lifecycle] App Shell 预缓存完成,共 %d 个资产", len(fetched))
	return nil
}

// Activate 回收不在当前纪元白名单内的分区
// 只删不建:白名单中尚不存在的分区由后续写入自然创建
func (lifecycle *Lifecycle) Activate(ctx context.Context) error {
	names, err := lifecycle.partitions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate partitions: %w", err)
	}

	for _, name := range names {
		if lifecycle.allowed[name] {
			continue
		}

		if err := lifecycle.partitions.Delete(ctx, name); err != nil {
			log.Printf("[Lifecycle] 回收分区 %s 失败: %v", name, err)
		}
	}

	return nil
}
