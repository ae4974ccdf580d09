package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"artifactvault/pkg/meta"
	"artifactvault/pkg/remote"
	"artifactvault/pkg/storage/disk"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestRouter 使用磁盘存储 + 内存 SQLite 构建完整的服务端
func newTestRouter(t *testing.T, cfg Config) (*gin.Engine, *disk.Adapter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&meta.ArtifactRecord{}))

	srv := New(store, meta.NewRepository(metaDB), nil, cfg)
	return srv.Router(), store
}

func serve(r http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, remote.APIPrefix+"/"+target, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func putBlob(r http.Handler, key string, data []byte) *httptest.ResponseRecorder {
	return serve(r, http.MethodPut, remote.BlobRoute+"/"+key, data,
		map[string]string{remote.DigestHeader: remote.ContentDigest(data)})
}
