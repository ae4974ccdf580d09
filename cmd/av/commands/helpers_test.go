package commands

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"artifactvault/pkg/meta"
	"artifactvault/pkg/server"
	"artifactvault/pkg/storage/disk"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupCLIEnv 搭建 真实文件缓存 + 真实 HTTP 服务端 (内存 SQLite) 的集成环境
// 返回服务端 URL 和工作目录
func setupCLIEnv(t *testing.T) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// 1. 缓存根目录通过环境变量注入 (AV_CACHE_HOME)
	workDir := t.TempDir()
	t.Setenv("AV_CACHE_HOME", filepath.Join(workDir, "home"))
	t.Setenv("AV_LOG_LEVEL", "error")

	// 2. 服务端: 磁盘 Blob + 内存数据库
	store, err := disk.NewAdapter(filepath.Join(workDir, "blobs"))
	require.NoError(t, err)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&meta.ArtifactRecord{}))

	srv := server.New(store, meta.NewRepository(metaDB), nil, server.Config{})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return ts.URL, workDir
}

// runCLI 执行一次 av 命令，返回 stdout
// rootCmd 是包级单例，每次执行前重置所有 flag，避免上一次的值泄漏
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	AV = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// uuidFrom 从 upload 输出的第一行 "<Kind> <uuid>" 中取出 uuid
func uuidFrom(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(strings.SplitN(out, "\n", 2)[0])
	require.Len(t, fields, 2, "unexpected upload output: %q", out)
	return fields[1]
}
