package commands

import (
	"fmt"
	"os"
	"strings"

	"artifactvault/pkg/app"
	"artifactvault/pkg/artifact"
	"artifactvault/pkg/config"
	"artifactvault/pkg/manager"
	"artifactvault/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	offline   bool
	namespace string

	// 全局应用实例，供子命令使用
	AV *app.App
)

var rootCmd = &cobra.Command{
	Use:           "av",
	Short:         "ArtifactVault: cache and sync ML artifacts",
	SilenceUsage:  true,
	SilenceErrors: false,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !types.Namespace(namespace).IsValid() {
			return fmt.Errorf("invalid namespace %q", namespace)
		}

		var err error
		AV, err = app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize artifactvault: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if AV != nil {
			_ = AV.Logger.Sync()
		}
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.av/config.yaml)")
	flags.BoolVar(&offline, "offline", false, "never contact the remote, use the local cache only")
	flags.StringVarP(&namespace, "namespace", "n", "", "project namespace (empty means global)")

	// 绑定到 Viper，配置文件 / 环境变量 / flag 三种方式都可以设置
	flags.String("cache-dir", "", "cache directory relative to the home directory")
	flags.String("remote", "", "base URL of the artifact server")
	for key, flag := range map[string]string{
		"cache.dir":  "cache-dir",
		"remote.url": "remote",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}

// parseKind 接受 Kind 名或复数名，大小写不敏感 (model / models / Model)
func parseKind(s string) (types.Kind, error) {
	for _, kind := range artifact.Kinds() {
		spec, _ := artifact.Lookup(kind)
		if strings.EqualFold(s, string(kind)) || strings.EqualFold(s, spec.Plural) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of %v)", artifact.ErrUnknownKind, s, artifact.Kinds())
}

// parseTarget 解析 <kind> <uuid> 两个位置参数
func parseTarget(args []string) (types.Kind, types.UUID, error) {
	kind, err := parseKind(args[0])
	if err != nil {
		return "", "", err
	}
	id := types.UUID(args[1])
	if !id.IsValid() {
		return "", "", fmt.Errorf("invalid uuid %q", args[1])
	}
	return kind, id, nil
}

func currentNamespace() types.Namespace {
	return types.Namespace(namespace)
}

// mode 根据 --offline 和远端配置选择缓存模式
func mode(requireRemote bool) (manager.Mode, error) {
	m, err := AV.Mode(offline, requireRemote)
	if err != nil {
		return nil, fmt.Errorf("%w (set remote.url, AV_REMOTE_URL or --remote)", err)
	}
	return m, nil
}
