package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/codec"
	"artifactvault/pkg/remote"
	"artifactvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelJSON(t *testing.T, id types.UUID, batchSize int) []byte {
	t.Helper()
	data, err := codec.EncodeJSON(&artifact.ModelMeta{
		Base:      artifact.Base{UUID: id},
		Name:      "churn",
		ModelType: artifact.ModelClassification,
		BatchSize: batchSize,
	})
	require.NoError(t, err)
	return data
}

func decodeMessage(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp remote.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Message
}

func TestServer_MetadataLifecycle(t *testing.T) {
	r, _ := newTestRouter(t, Config{})
	id := types.NewUUID()
	endpoint := "project/credit/models/" + id.String()

	// 1. 未注册
	w := serve(r, http.MethodGet, endpoint, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeMessage(t, w.Body), "not registered")

	// 2. 注册：服务端补全 version 与 created_at
	w = serve(r, http.MethodPut, endpoint, modelJSON(t, id, 20), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err := codec.DecodeJSON(w.Body.Bytes(), artifact.KindModel)
	require.NoError(t, err)
	assert.Equal(t, id, got.GetUUID())
	assert.Equal(t, int64(1), got.Common().Version)
	assert.NotZero(t, got.Common().CreatedAt)

	// 3. 读取
	w = serve(r, http.MethodGet, endpoint, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fetched, err := codec.DecodeJSON(w.Body.Bytes(), artifact.KindModel)
	require.NoError(t, err)
	assert.Equal(t, got, fetched)

	// 4. 相同内容重试 -> 原样返回
	w = serve(r, http.MethodPut, endpoint, modelJSON(t, id, 20), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 5. 内容变化 -> 409，已注册的元数据不变
	w = serve(r, http.MethodPut, endpoint, modelJSON(t, id, 64), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decodeMessage(t, w.Body), "immutable")

	w = serve(r, http.MethodGet, endpoint, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fetched, err = codec.DecodeJSON(w.Body.Bytes(), artifact.KindModel)
	require.NoError(t, err)
	assert.Equal(t, got, fetched)
	assert.Equal(t, 20, fetched.(*artifact.ModelMeta).BatchSize)
}

func TestServer_MetadataRejections(t *testing.T) {
	r, _ := newTestRouter(t, Config{})
	id := types.NewUUID()

	tests := []struct {
		name     string
		endpoint string
		body     []byte
		status   int
	}{
		{"UUID mismatch", "models/" + types.NewUUID().String(), modelJSON(t, id, 1), http.StatusBadRequest},
		{"Unknown field", "models/" + id.String(), []byte(fmt.Sprintf(`{"uuid":%q,"epochs":3}`, id)), http.StatusBadRequest},
		{"Bad uuid", "models/not-a-uuid", modelJSON(t, id, 1), http.StatusBadRequest},
		{"Unknown kind", "project/credit/pipelines/" + id.String(), modelJSON(t, id, 1), http.StatusBadRequest},
		{"Unknown route", "pipelines/" + id.String(), modelJSON(t, id, 1), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodPut, tt.endpoint, tt.body, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestServer_BlobPublication(t *testing.T) {
	r, store := newTestRouter(t, Config{})
	prefix := "global/datasets/" + types.NewUUID().String()

	// 1. 上传 Blob，但还没有完成标记
	w := putBlob(r, prefix+"/data.cbor.zst", []byte("rows"))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, remote.ListRoute+"/"+prefix, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "未发布的目录对读者不可见")

	// 2. 写入标记后可见，列表里不包含标记本身
	w = putBlob(r, prefix+"/"+remote.CompleteMarker, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodGet, remote.ListRoute+"/"+prefix, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing remote.ListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&listing))
	assert.Equal(t, []string{"data.cbor.zst"}, listing.Files)

	// 3. 下载
	w = serve(r, http.MethodGet, remote.BlobRoute+"/"+prefix+"/data.cbor.zst", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rows", w.Body.String())

	w = serve(r, http.MethodGet, remote.BlobRoute+"/"+prefix+"/missing.bin", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ok, err := store.Has(context.Background(), prefix+"/data.cbor.zst")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServer_BlobIntegrity(t *testing.T) {
	r, store := newTestRouter(t, Config{})
	key := "global/models/" + types.NewUUID().String() + "/model.cbor"

	// 摘要不匹配
	w := serve(r, http.MethodPut, remote.BlobRoute+"/"+key, []byte("tampered"),
		map[string]string{remote.DigestHeader: remote.ContentDigest([]byte("original"))})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeMessage(t, w.Body), "digest mismatch")

	// 缺少摘要
	w = serve(r, http.MethodPut, remote.BlobRoute+"/"+key, []byte("x"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ok, err := store.Has(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok, "被拒绝的 Blob 不能落盘")
}

func TestServer_BlobSizeLimit(t *testing.T) {
	r, _ := newTestRouter(t, Config{MaxBlobBytes: 4})
	key := "global/models/" + types.NewUUID().String() + "/model.cbor"

	w := putBlob(r, key, []byte("too large"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_BlobKeyValidation(t *testing.T) {
	r, _ := newTestRouter(t, Config{})
	id := types.NewUUID().String()

	for _, key := range []string{
		"global/models/" + id,                 // 缺少文件名
		"global/pipelines/" + id + "/x.bin",   // 未知 Kind
		"global/models/not-a-uuid/model.cbor", // 非法 uuid
		"global/models/" + id + "/../x",       // 路径穿越
	} {
		t.Run(key, func(t *testing.T) {
			w := putBlob(r, key, []byte("x"))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestServer_BearerAuth(t *testing.T) {
	r, _ := newTestRouter(t, Config{Token: "s3cret"})
	endpoint := "models/" + types.NewUUID().String()

	w := serve(r, http.MethodGet, endpoint, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, endpoint, nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, endpoint, nil, map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusNotFound, w.Code, "鉴权通过后才进入业务逻辑")
}

func TestServer_RequestID(t *testing.T) {
	r, _ := newTestRouter(t, Config{})
	w := serve(r, http.MethodGet, "models/"+types.NewUUID().String(), nil, map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = serve(r, http.MethodGet, "models/"+types.NewUUID().String(), nil, nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_ArtifactIndex(t *testing.T) {
	r, _ := newTestRouter(t, Config{})
	a, b := types.NewUUID(), types.NewUUID()
	for _, id := range []types.UUID{a, b} {
		w := serve(r, http.MethodPut, "project/credit/models/"+id.String(), modelJSON(t, id, 0), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// 1. 按命名空间过滤
	w := serve(r, http.MethodGet, remote.IndexRoute+"/models?namespace=credit", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var index remote.IndexResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&index))
	require.Len(t, index.Artifacts, 2)
	for _, e := range index.Artifacts {
		assert.Equal(t, int64(1), e.Version)
		assert.Contains(t, []string{a.String(), b.String()}, e.UUID)
	}

	// 2. global 下没有记录
	w = serve(r, http.MethodGet, remote.IndexRoute+"/models", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&index))
	assert.Empty(t, index.Artifacts)

	// 3. limit
	w = serve(r, http.MethodGet, remote.IndexRoute+"/models?namespace=credit&limit=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&index))
	assert.Len(t, index.Artifacts, 1)

	// 4. 非法参数
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, remote.IndexRoute+"/pipelines", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, remote.IndexRoute+"/models?limit=-1", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, remote.IndexRoute+"/models?namespace=a%2Fb", nil, nil).Code)
}
