package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"artifactvault/pkg/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
	Logger   *zap.Logger
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		logger:  logger,
	}, nil
}

// Close 释放 Redis 连接池
func (s *CachedStore) Close() error {
	return s.client.Close()
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(key string) string {
	return "av:blob:" + key
}

// Has 优先查 Redis
// 服务端每次列目录都要检查 .complete 标记，命中缓存时无需访问底层存储
func (s *CachedStore) Has(ctx context.Context, key string) (bool, error) {
	ck := s.cacheKey(key)

	// 1. 查 Redis
	val, err := s.client.Exists(ctx, ck).Result()
	if err != nil {
		// 缓存故障降级：退化为无缓存模式，直接查底层
		s.logger.Warn("redis exists failed, falling back to backend", zap.String("key", key), zap.Error(err))
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, key)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填 (异步，不阻塞主流程)
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.client.Set(fillCtx, ck, "1", s.ttl).Err(); err != nil {
				s.logger.Debug("redis fill failed", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	return found, nil
}

// Put 写穿底层存储，成功后再写缓存
// 对象可以被覆盖，所以这里不做 Has 预检
func (s *CachedStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.backend.Put(ctx, key, data); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.cacheKey(key), "1", s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Get 透传：Blob 可能很大，Redis 只存存在性
func (s *CachedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// List 透传
func (s *CachedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.List(ctx, prefix)
}
