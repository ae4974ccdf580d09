// pkg/app/app.go
package app

import (
	"errors"
	"fmt"

	"artifactvault/pkg/client"
	"artifactvault/pkg/config"
	"artifactvault/pkg/manager"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrNoRemote 配置中没有 remote.url 时，网络模式不可用
var ErrNoRemote = errors.New("remote.url is not configured")

// App 是客户端 (av CLI) 的依赖容器
type App struct {
	Manager *manager.Manager
	Remote  *client.AVClient // remote.url 为空时为 nil
	Logger  *zap.Logger
}

// NewApp 按 Viper 配置组装客户端，不知道具体的 CLI 命令
func NewApp() (*App, error) {
	// 1. 日志
	logger, err := config.NewLogger()
	if err != nil {
		return nil, err
	}

	// 2. 本地缓存
	mgr, err := manager.New(manager.Config{
		Home:     viper.GetString("cache.home"),
		CacheDir: viper.GetString("cache.dir"),
	}, manager.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to init cache: %w", err)
	}

	// 3. 远端 (可选)
	var remoteClient *client.AVClient
	if url := viper.GetString("remote.url"); url != "" {
		remoteClient, err = client.NewAVClient(client.Config{
			BaseURL:     url,
			Token:       viper.GetString("remote.token"),
			Timeout:     viper.GetDuration("remote.timeout"),
			Concurrency: viper.GetInt("remote.concurrency"),
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init remote client: %w", err)
		}
	}

	return &App{
		Manager: mgr,
		Remote:  remoteClient,
		Logger:  logger,
	}, nil
}

// Mode 选择缓存模式: offline 或未配置远端时为 LocalOnly
// requireRemote 为 true 时，未配置远端返回 ErrNoRemote
func (a *App) Mode(offline, requireRemote bool) (manager.Mode, error) {
	if offline {
		return manager.LocalOnly(), nil
	}
	if a.Remote == nil {
		if requireRemote {
			return nil, ErrNoRemote
		}
		return manager.LocalOnly(), nil
	}
	return manager.Networked(a.Remote), nil
}
