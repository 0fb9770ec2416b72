package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/soundsort/types"
)

const labelKeyPrefix = "soundsort:label:"

// Store 是 LabelCache 依赖的键值存储
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// LabelCache 以归一化特征摘要为键缓存分类结果
type LabelCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewLabelCache 创建标签缓存；ttl 为 0 时使用存储的默认过期时间
func NewLabelCache(store Store, ttl time.Duration, logger *zap.Logger) *LabelCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LabelCache{
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "label_cache")),
	}
}

// Get 查询摘要对应的标签。未命中返回 ErrCacheMiss；
// 存储中的非法值按未命中处理。
func (c *LabelCache) Get(ctx context.Context, digest string) (types.Label, error) {
	raw, err := c.store.Get(ctx, labelKeyPrefix+digest)
	if err != nil {
		return types.LabelUnknown, err
	}
	label, err := types.ParseLabel(raw)
	if err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("digest", digest), zap.String("value", raw))
		return types.LabelUnknown, ErrCacheMiss
	}
	return label, nil
}

// Put 写入标签
func (c *LabelCache) Put(ctx context.Context, digest string, label types.Label) error {
	if !label.Valid() {
		return fmt.Errorf("refusing to cache invalid label %d", int(label))
	}
	return c.store.Set(ctx, labelKeyPrefix+digest, label.String(), c.ttl)
}
