package app

import (
	"context"
	"errors"
	"fmt"

	"artifactvault/pkg/config"
	"artifactvault/pkg/meta"
	"artifactvault/pkg/server"
	"artifactvault/pkg/storage"
	"artifactvault/pkg/storage/cache"
	"artifactvault/pkg/storage/disk"
	"artifactvault/pkg/storage/s3"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ServerApp 是 av-server 的依赖容器
type ServerApp struct {
	Store    storage.Store
	Registry *meta.Repository
	Server   *server.Server
	Logger   *zap.Logger

	closers []func() error
}

// NewServerApp 组装存储、注册表和 HTTP 服务
func NewServerApp(ctx context.Context) (*ServerApp, error) {
	logger, err := config.NewLogger()
	if err != nil {
		return nil, err
	}
	a := &ServerApp{Logger: logger}

	// 1. Blob 存储 (disk / s3)
	store, err := initStore(ctx, logger)
	if err != nil {
		return nil, err
	}

	// 2. 可选的 Redis 存在性缓存
	if url := viper.GetString("redis.url"); url != "" {
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("redis.ttl"),
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, cached.Close)
		store = cached
	}
	a.Store = store

	// 3. 元数据注册表
	db, err := meta.NewDB(ctx, meta.Config{
		Driver:   viper.GetString("database.driver"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.name"),
		SSLMode:  viper.GetString("database.sslmode"),
		Path:     viper.GetString("database.path"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.Registry = meta.NewRepository(db)

	// 4. HTTP
	a.Server = server.New(a.Store, a.Registry, logger, server.Config{
		Token:        viper.GetString("server.token"),
		MaxBlobBytes: viper.GetInt64("server.max_blob_bytes"),
	})
	return a, nil
}

// Close 按创建的逆序释放资源
func (a *ServerApp) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// initStore 根据 storage.type 选择 Blob 存储实现
func initStore(ctx context.Context, logger *zap.Logger) (storage.Store, error) {
	switch storeType := viper.GetString("storage.type"); storeType {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		return disk.NewAdapter(path)

	case "s3":
		bucket := viper.GetString("storage.s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		return s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
			Logger:          logger,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storeType)
	}
}
