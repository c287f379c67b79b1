package cache

import (
	"context"
	"time"
)

// Store 缓存存储接口；值以 JSON 序列化，Get 未命中或已过期时返回 errors.ErrNotFound
type Store interface {
	// Set 设置缓存，expiration <= 0 表示不过期
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存并反序列化到 dest
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存，key 不存在时不报错
	Delete(ctx context.Context, key string) error
	// Exists 检查缓存是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Close 关闭缓存连接
	Close() error
}

// Purger 需要主动清理过期项的后端（redis 由服务端按 TTL 过期，无需实现）
type Purger interface {
	// PurgeExpired 删除全部已过期条目，返回删除数量
	PurgeExpired(ctx context.Context) (int, error)
}
