package meta

import (
	"context"
	"fmt"
	"testing"
	"time"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo 构建隔离的测试环境
func setupTestRepo(t *testing.T) *Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&ArtifactRecord{}))

	repo := NewRepository(metaDB)
	repo.now = func() time.Time { return time.Unix(1700000000, 0) }
	return repo
}

// -----------------------------------------------------------------------------
// 测试用例
// -----------------------------------------------------------------------------

func TestRepository_RegisterAssignsVersion(t *testing.T) {
	repo := setupTestRepo(t)
	meta := newModelMeta("churn")
	ep := endpointOf(t, meta, "")

	// 1. 首次注册
	rec := mustRegister(t, repo, ep, meta)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, int64(1700000000), rec.RegisteredAt)
	assert.Equal(t, "Model", rec.Kind)
	assert.Equal(t, "", rec.Namespace)

	// 2. 规范元数据带上服务端字段
	canonical, err := rec.Metadata()
	require.NoError(t, err)
	assert.Equal(t, meta.GetUUID(), canonical.GetUUID())
	assert.Equal(t, int64(1), canonical.Common().Version)
	assert.Equal(t, int64(1700000000), canonical.Common().CreatedAt)
	assert.Equal(t, 20, canonical.(*artifact.ModelMeta).BatchSize)

	// 3. 客户端带回 version 重试 (相同内容) 不改变版本
	rec = mustRegister(t, repo, ep, canonical)
	assert.Equal(t, int64(1), rec.Version)

	// 4. 同一 uuid 的内容变化被拒绝，已注册的记录不变
	repo.now = func() time.Time { return time.Unix(1800000000, 0) }
	changed := meta.Clone().(*artifact.ModelMeta)
	changed.BatchSize = 64
	_, err = repo.Register(context.Background(), ep, changed)
	assert.ErrorIs(t, err, ErrImmutable)

	stored, err := repo.Get(context.Background(), ep)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, int64(1700000000), stored.RegisteredAt)
	assert.JSONEq(t, fmt.Sprintf(`{"uuid":%q,"name":"churn","model_type":"regression","batch_size":20}`, meta.GetUUID()), string(stored.Content))
}

func TestRepository_Register_Idempotency(t *testing.T) {
	repo := setupTestRepo(t)
	meta := newModelMeta("dup")
	ep := endpointOf(t, meta, "credit")

	mustRegister(t, repo, ep, meta, "1st write failed")
	mustRegister(t, repo, ep, meta, "2nd write (idempotency check) failed")

	var count int64
	err := repo.db.GetConn().Model(&ArtifactRecord{}).Where("endpoint = ?", ep).Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "Should have exactly 1 record after duplicate registrations")
}

func TestRepository_Register_EndpointMismatch(t *testing.T) {
	repo := setupTestRepo(t)
	meta := newModelMeta("m")

	tests := []struct {
		name     string
		endpoint string
	}{
		{"Other uuid", "models/" + types.NewUUID().String()},
		{"Other kind", "datasets/" + meta.GetUUID().String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Register(context.Background(), tt.endpoint, meta)
			assert.ErrorIs(t, err, ErrEndpointMismatch)
		})
	}

	_, err := repo.Register(context.Background(), "not/a/valid/endpoint/at/all", meta)
	assert.Error(t, err)
}

func TestRepository_Get_NotFound(t *testing.T) {
	repo := setupTestRepo(t)
	_, err := repo.Get(context.Background(), "models/"+types.NewUUID().String())
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestRepository_ListByScope(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	a := newModelMeta("a")
	b := newModelMeta("b")
	other := newModelMeta("other")
	ds := &artifact.DatasetMeta{Base: artifact.Base{UUID: types.NewUUID()}, Name: "d"}

	mustRegister(t, repo, endpointOf(t, a, "credit"), a)
	repo.now = func() time.Time { return time.Unix(1700000100, 0) }
	mustRegister(t, repo, endpointOf(t, b, "credit"), b)
	mustRegister(t, repo, endpointOf(t, other, ""), other)
	mustRegister(t, repo, endpointOf(t, ds, "credit"), ds)

	records, err := repo.ListByScope(ctx, "credit", artifact.KindModel, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, b.GetUUID().String(), records[0].UUID, "最新注册在前")
	assert.Equal(t, a.GetUUID().String(), records[1].UUID)

	records, err = repo.ListByScope(ctx, "", artifact.KindModel, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
