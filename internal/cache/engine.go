package cache

import (
	"context"
	"log"
	"time"
)

// Engine 缓存分层策略引擎
// 三种策略都以 (请求键, 分区) 为输入,对分区本身保持无感知
type Engine struct {
	fetcher Fetcher
}

// NewEngine 创建策略引擎实例
func NewEngine(fetcher Fetcher) *Engine {
	return &Engine{fetcher: fetcher}
}

// CacheFirst 缓存优先策略
// 命中直接返回;未命中则抓取上游并写入分区
// 抓取失败且无缓存时错误原样上抛:预缓存资产缺失说明部署有缺陷,值得暴露
func (engine *Engine) CacheFirst(ctx context.Context, partition *Partition, key string) (*Response, error) {
	entry, found, err := partition.Match(ctx, key)
	if err == nil && found {
		return entryToResponse(entry), nil
	}

	response, err := engine.fetchAndStore(ctx, partition, key)
	if err != nil {
		return nil, err
	}

	return response, nil
}

// StaleWhileRevalidate 缓存即用后台刷新策略
// 命中立即返回旧值,同时在后台刷新分区;后台刷新失败被吞掉
// 未命中时退化为直接抓取
func (engine *Engine) StaleWhileRevalidate(ctx context.Context, partition *Partition, key string) (*Response, error) {
	entry, found, err := partition.Match(ctx, key)
	if err == nil && found {
		engine.revalidateInBackground(partition, key)
		return entryToResponse(entry), nil
	}

	return engine.fetchAndStore(ctx, partition, key)
}

// NetworkFirst 网络优先策略
// 抓取成功则写入分区并返回;失败时依次回退:缓存 -> 指定回退响应 -> 网络错误
func (engine *Engine) NetworkFirst(ctx context.Context, partition *Partition, key string, fallback *Response) (*Response, error) {
	response, err := engine.fetchAndStore(ctx, partition, key)
	if err == nil {
		return response, nil
	}

	entry, found, matchErr := partition.Match(ctx, key)
	if matchErr == nil && found {
		return entryToResponse(entry), nil
	}

	if fallback != nil {
		return fallback, nil
	}

	return nil, err
}

// fetchAndStore 抓取上游并写入分区
// 写入失败只记录日志:缓存是网络响应的幂等投影,丢一次写不影响正确性
func (engine *Engine) fetchAndStore(ctx context.Context, partition *Partition, key string) (*Response, error) {
	response, err := engine.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := partition.Put(ctx, key, responseToEntry(response)); err != nil {
		log.Printf("[Cache] 写入分区 %s 失败: %v", partition.Name(), err)
	}

	return response, nil
}

// revalidateInBackground 后台刷新缓存条目
// 刷新一旦启动即独立于原请求运行,失败不影响已返回的旧值
func (engine *Engine) revalidateInBackground(partition *Partition, key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := engine.fetchAndStore(ctx, partition, key); err != nil {
			log.Printf("[Cache] 后台刷新失败 partition=%s key=%s: %v", partition.Name(), key, err)
		}
	}()
}

// entryToResponse 缓存条目转响应
func entryToResponse(entry *Entry) *Response {
	return &Response{
		Status:      entry.Status,
		ContentType: entry.ContentType,
		Body:        entry.Body,
	}
}

// responseToEntry 响应转缓存条目
func responseToEntry(response *Response) *Entry {
	return &Entry{
		Status:      response.Status,
		ContentType: response.ContentType,
		Body:        response.Body,
	}
}
