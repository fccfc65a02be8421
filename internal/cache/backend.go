package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Backend 缓存分区的底层字节存储
// 实现必须逐字节透明:Get 返回的内容与 Set 写入的完全一致
type Backend interface {
	// Get 命中返回 (value, true, nil);未命中返回 (nil, false, nil)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set 整体替换键值,单键写入具备原子替换语义
	Set(ctx context.Context, key string, value []byte) error
	// Del 删除指定键(尽力而为)
	Del(ctx context.Context, keys ...string) error
	// SAdd 向集合添加成员
	SAdd(ctx context.Context, key string, members ...string) error
	// SRem 从集合移除成员
	SRem(ctx context.Context, key string, member string) error
	// SMembers 返回集合全部成员
	SMembers(ctx context.Context, key string) ([]string, error)
}

// RedisBackend Redis 字节存储实现
// 所有键统一加命名空间前缀,与其他业务键隔离
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

// NewRedisBackend 创建 Redis 存储实例
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{
		client:    client,
		namespace: namespace,
	}
}

// Get 读取键值
func (backend *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := backend.client.Get(ctx, backend.buildKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache key: %w", err)
	}

	return data, true, nil
}

// Set 写入键值
func (backend *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := backend.client.Set(ctx, backend.buildKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cache key: %w", err)
	}
	return nil
}

// Del 删除指定键
func (backend *RedisBackend) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, backend.buildKey(key))
	}

	if err := backend.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

// SAdd 向集合添加成员
func (backend *RedisBackend) SAdd(ctx context.Context, key string, members ...string) error {
	values := make([]interface{}, 0, len(members))
	for _, member := range members {
		values = append(values, member)
	}

	if err := backend.client.SAdd(ctx, backend.buildKey(key), values...).Err(); err != nil {
		return fmt.Errorf("failed to add set members: %w", err)
	}
	return nil
}

// SRem 从集合移除成员
func (backend *RedisBackend) SRem(ctx context.Context, key string, member string) error {
	if err := backend.client.SRem(ctx, backend.buildKey(key), member).Err(); err != nil {
		return fmt.Errorf("failed to remove set member: %w", err)
	}
	return nil
}

// SMembers 返回集合全部成员
func (backend *RedisBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := backend.client.SMembers(ctx, backend.buildKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read set members: %w", err)
	}
	return members, nil
}

// buildKey 为键添加命名空间前缀
func (backend *RedisBackend) buildKey(key string) string {
	return backend.namespace + ":" + key
}
