package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀: AV_REMOTE_URL 对应 remote.url
const EnvPrefix = "AV"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.av -> $HOME/.av
		viper.AddConfigPath(".")
		viper.AddConfigPath(".av")
		viper.AddConfigPath(filepath.Join(home, ".av"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (AV_DATABASE_HOST 等)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	// 没找到配置文件不算错 (可能全靠环境变量)，格式错误才算
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	return nil
}

// Used 返回实际加载的配置文件，没有时为空
func Used() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	// 客户端缓存 (cache.home 为空时使用用户主目录)
	viper.SetDefault("cache.home", "")
	viper.SetDefault("cache.dir", ".artifactvault/cache")

	// 远端
	viper.SetDefault("remote.url", "")
	viper.SetDefault("remote.token", "")
	viper.SetDefault("remote.timeout", 5*time.Minute)
	viper.SetDefault("remote.concurrency", 4)

	// 日志
	viper.SetDefault("log.level", "info")

	// 服务端
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.token", "")
	viper.SetDefault("server.max_blob_bytes", int64(1<<30))

	// 数据库默认值
	wd, _ := os.Getwd()
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.name", "artifactvault")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.path", filepath.Join(wd, ".av", "registry.db"))

	// 存储默认值
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", filepath.Join(wd, ".av", "blobs"))
	viper.SetDefault("storage.s3.region", "us-east-1")

	// Redis (为空表示不启用存在性缓存)
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.ttl", 24*time.Hour)
}
