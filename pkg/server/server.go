// Package server is the reference backend for the HTTP remote protocol:
// metadata lives in the GORM registry, blobs in a storage.Store.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/codec"
	"artifactvault/pkg/meta"
	"artifactvault/pkg/remote"
	"artifactvault/pkg/storage"
	"artifactvault/pkg/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	DefaultMaxBlobBytes = 1 << 30
	maxMetaBytes        = 1 << 20

	defaultIndexLimit = 100
	maxIndexLimit     = 1000
)

// Config 服务端可选参数
type Config struct {
	Token        string // 为空时不鉴权
	MaxBlobBytes int64
}

type Server struct {
	store    storage.Store
	registry *meta.Repository
	logger   *zap.Logger
	cfg      Config
}

func New(store storage.Store, registry *meta.Repository, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBlobBytes <= 0 {
		cfg.MaxBlobBytes = DefaultMaxBlobBytes
	}
	return &Server{store: store, registry: registry, logger: logger, cfg: cfg}
}

// Router 构建 gin 路由
//
//	PUT/GET /api/v2/<plural>/<uuid>
//	PUT/GET /api/v2/project/<ns>/<plural>/<uuid>
//	PUT/GET /api/v2/artifacts/<prefix>/<file>
//	GET     /api/v2/artifact-list/<prefix>
//	GET     /api/v2/artifact-index/<plural>?namespace=<ns>&limit=<n>
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logging(s.logger), Recovery(s.logger))

	api := r.Group(remote.APIPrefix, BearerAuth(s.cfg.Token))

	// 每个 Kind 一条静态路由，避免与 artifacts/ 等静态段冲突
	for _, kind := range artifact.Kinds() {
		spec, _ := artifact.Lookup(kind)
		api.PUT("/"+spec.Plural+"/:uuid", s.putMetadata)
		api.GET("/"+spec.Plural+"/:uuid", s.getMetadata)
	}
	api.PUT("/project/:ns/:plural/:uuid", s.putMetadata)
	api.GET("/project/:ns/:plural/:uuid", s.getMetadata)

	api.PUT("/"+remote.BlobRoute+"/*key", s.putBlob)
	api.GET("/"+remote.BlobRoute+"/*key", s.getBlob)
	api.GET("/"+remote.ListRoute+"/*prefix", s.listBlobs)
	api.GET("/"+remote.IndexRoute+"/:plural", s.listArtifacts)

	return r
}

// =============================================================================
// 元数据
// =============================================================================

func endpointOf(c *gin.Context) string {
	return strings.TrimPrefix(c.Request.URL.Path, remote.APIPrefix+"/")
}

func (s *Server) putMetadata(c *gin.Context) {
	// 1. 解析 endpoint
	endpoint := endpointOf(c)
	target, err := remote.ParseMetaEndpoint(endpoint)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	// 2. 按 Kind 的 Schema 严格解码
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxMetaBytes))
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	m, err := codec.DecodeJSON(body, target.Kind)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	// 3. 注册并返回规范元数据
	rec, err := s.registry.Register(c.Request.Context(), endpoint, m)
	switch {
	case errors.Is(err, meta.ErrEndpointMismatch):
		abort(c, http.StatusBadRequest, err)
		return
	case errors.Is(err, meta.ErrConcurrentUpdate), errors.Is(err, meta.ErrImmutable):
		abort(c, http.StatusConflict, err)
		return
	case err != nil:
		abort(c, http.StatusInternalServerError, err)
		return
	}
	s.writeRecord(c, rec)
}

func (s *Server) getMetadata(c *gin.Context) {
	endpoint := endpointOf(c)
	if _, err := remote.ParseMetaEndpoint(endpoint); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	rec, err := s.registry.Get(c.Request.Context(), endpoint)
	if errors.Is(err, meta.ErrArtifactNotFound) {
		abort(c, http.StatusNotFound, fmt.Errorf("%s: %w", endpoint, err))
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	s.writeRecord(c, rec)
}

// listArtifacts 列出某个命名空间下某个 Kind 的注册记录 (最新在前)
func (s *Server) listArtifacts(c *gin.Context) {
	spec, err := artifact.LookupPlural(c.Param("plural"))
	if err != nil {
		abort(c, http.StatusNotFound, err)
		return
	}
	ns := types.Namespace(c.Query("namespace"))
	if !ns.IsValid() {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid namespace %q", ns))
		return
	}

	limit := defaultIndexLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abort(c, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxIndexLimit)
	}

	records, err := s.registry.ListByScope(c.Request.Context(), ns, spec.Kind, limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	resp := remote.IndexResponse{Artifacts: make([]remote.IndexEntry, 0, len(records))}
	for _, rec := range records {
		resp.Artifacts = append(resp.Artifacts, remote.IndexEntry{
			Endpoint:  rec.Endpoint,
			UUID:      rec.UUID,
			Version:   rec.Version,
			CreatedAt: rec.RegisteredAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) writeRecord(c *gin.Context, rec *meta.ArtifactRecord) {
	canonical, err := rec.Metadata()
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	data, err := codec.EncodeJSON(canonical)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// =============================================================================
// Blob
// =============================================================================

// blobKey 校验 Key 形如 <ns-or-global>/<plural>/<uuid>/<file...>
func blobKey(raw string) (string, error) {
	key := strings.TrimPrefix(raw, "/")
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	parts := strings.SplitN(key, "/", 4)
	if len(parts) != 4 {
		return "", fmt.Errorf("%w: %q is not under an artifact prefix", storage.ErrInvalidKey, key)
	}
	if _, err := remote.ParseBlobPrefix(strings.Join(parts[:3], "/")); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Server) putBlob(c *gin.Context) {
	key, err := blobKey(c.Param("key"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	want := strings.ToLower(c.GetHeader(remote.DigestHeader))
	if want == "" {
		abort(c, http.StatusBadRequest, fmt.Errorf("missing %s header", remote.DigestHeader))
		return
	}

	// 1. 读取并限制大小
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBlobBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, err)
			return
		}
		abort(c, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}

	// 2. 完整性校验
	if got := remote.ContentDigest(body); got != want {
		abort(c, http.StatusBadRequest, fmt.Errorf("digest mismatch for %s: header %s, body %s", key, want, got))
		return
	}

	// 3. 落盘
	if err := s.store.Put(c.Request.Context(), key, body); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getBlob(c *gin.Context) {
	key, err := blobKey(c.Param("key"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	rc, err := s.store.Get(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		abort(c, http.StatusNotFound, fmt.Errorf("blob %s not found", key))
		return
	}
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		// 响应头已发出，只能记录
		_ = c.Error(err)
	}
}

func (s *Server) listBlobs(c *gin.Context) {
	prefix := strings.Trim(c.Param("prefix"), "/")
	if _, err := remote.ParseBlobPrefix(prefix); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	// 1. 只有发布完成 (标记存在) 的目录才可见
	ok, err := s.store.Has(c.Request.Context(), storage.Join(prefix, remote.CompleteMarker))
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		abort(c, http.StatusNotFound, fmt.Errorf("no published blobs under %s", prefix))
		return
	}

	// 2. 列目录，去掉标记本身
	names, err := s.store.List(c.Request.Context(), prefix)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	files := make([]string, 0, len(names))
	for _, n := range names {
		if n != remote.CompleteMarker {
			files = append(files, n)
		}
	}
	c.JSON(http.StatusOK, remote.ListResponse{Files: files})
}
