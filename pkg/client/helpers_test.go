package client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"artifactvault/pkg/meta"
	"artifactvault/pkg/server"
	"artifactvault/pkg/storage"
	"artifactvault/pkg/storage/disk"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MetricStore 组合真正的 Store，只统计调用次数
type MetricStore struct {
	storage.Store
	putCount  int32
	listCount int32
}

func (m *MetricStore) Put(ctx context.Context, key string, data []byte) error {
	atomic.AddInt32(&m.putCount, 1)
	return m.Store.Put(ctx, key, data)
}

func (m *MetricStore) List(ctx context.Context, prefix string) ([]string, error) {
	atomic.AddInt32(&m.listCount, 1)
	return m.Store.List(ctx, prefix)
}

type testEnv struct {
	server *httptest.Server
	store  *MetricStore
	client *AVClient
}

// newTestEnv 启动一个真实的 HTTP 服务端 (磁盘 Blob + 内存 SQLite)
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, token, nil)
}

func newTestEnvWithStore(t *testing.T, token string, backend storage.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if backend == nil {
		d, err := disk.NewAdapter(t.TempDir())
		require.NoError(t, err)
		backend = d
	}
	store := &MetricStore{Store: backend}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&meta.ArtifactRecord{}))

	srv := server.New(store, meta.NewRepository(metaDB), nil, server.Config{Token: token})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	c, err := NewAVClient(Config{BaseURL: ts.URL, Token: token, Concurrency: 2})
	require.NoError(t, err)

	return &testEnv{server: ts, store: store, client: c}
}
