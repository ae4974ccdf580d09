// Package client implements remote.Client over the artifact service's HTTP
// API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/codec"
	"artifactvault/pkg/ignore"
	"artifactvault/pkg/remote"
	"artifactvault/pkg/storage"
	"artifactvault/pkg/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimeout     = 5 * time.Minute
	DefaultConcurrency = 4

	maxErrorBody = 64 << 10
)

// Config 客户端配置
type Config struct {
	BaseURL     string        // 例如 http://localhost:8080
	Token       string        // 为空时不带 Authorization
	Timeout     time.Duration // 单个 HTTP 请求的超时
	Concurrency int           // 同一目录内并行传输的文件数
	Logger      *zap.Logger
	HTTPClient  *http.Client // 测试注入
}

// AVClient 实现了 remote.Client
type AVClient struct {
	base        *url.URL
	token       string
	concurrency int
	http        *http.Client
	logger      *zap.Logger
}

var _ remote.Client = (*AVClient)(nil)

// NewAVClient 创建客户端，只校验配置，不发起网络请求
func NewAVClient(cfg Config) (*AVClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote url is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AVClient{
		base:        base,
		token:       cfg.Token,
		concurrency: cfg.Concurrency,
		http:        httpClient,
		logger:      logger,
	}, nil
}

// =============================================================================
// 元数据
// =============================================================================

func (c *AVClient) PushMetadata(ctx context.Context, endpoint string, meta artifact.Metadata) (artifact.Metadata, error) {
	body, err := codec.EncodeJSON(meta)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPut, c.url(endpoint), body, "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return decodeMetadata(resp.Body, meta.Kind())
}

func (c *AVClient) FetchMetadata(ctx context.Context, endpoint string, kind types.Kind) (artifact.Metadata, error) {
	resp, err := c.do(ctx, http.MethodGet, c.url(endpoint), nil, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", endpoint, artifact.ErrNotFound)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return decodeMetadata(resp.Body, kind)
}

func decodeMetadata(r io.Reader, kind types.Kind) (artifact.Metadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read metadata response: %w", err)
	}
	return codec.DecodeJSON(data, kind)
}

// ListRegistered 列出服务端注册表中某个 namespace/kind 的记录 (最新在前)
// 不属于 remote.Client 契约，只供 CLI 浏览使用
func (c *AVClient) ListRegistered(ctx context.Context, ns types.Namespace, kind types.Kind, limit int) ([]remote.IndexEntry, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return nil, err
	}

	target := c.url(remote.IndexRoute, spec.Plural)
	q := url.Values{}
	if !ns.IsGlobal() {
		q.Set("namespace", ns.String())
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var index remote.IndexResponse
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		return nil, fmt.Errorf("decode artifact index: %w", err)
	}
	return index.Artifacts, nil
}

// =============================================================================
// Blob
// =============================================================================

// PushBlobs 并行上传目录内的 Blob，全部成功后最后写入完成标记
// 标记写入前读者看不到这个目录 (列表返回 404)
func (c *AVClient) PushBlobs(ctx context.Context, localDir, prefix string) error {
	// 1. 收集需要上传的文件
	files, err := c.collect(localDir)
	if err != nil {
		return err
	}

	// 2. 并行上传
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, name := range files {
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(localDir, filepath.FromSlash(name)))
			if err != nil {
				return fmt.Errorf("read blob %s: %w", name, err)
			}
			return c.putBlob(gctx, storage.Join(prefix, name), data)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 3. 发布
	if err := c.putBlob(ctx, storage.Join(prefix, remote.CompleteMarker), nil); err != nil {
		return fmt.Errorf("publish %s: %w", prefix, err)
	}

	c.logger.Debug("blobs pushed", zap.String("prefix", prefix), zap.Int("files", len(files)))
	return nil
}

// collect 返回 localDir 下未被忽略的文件 (slash 相对路径)
func (c *AVClient) collect(localDir string) ([]string, error) {
	matcher, err := ignore.NewMatcher(localDir)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ignore.FileName, err)
	}

	var files []string
	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == localDir {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matcher.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", localDir, err)
	}
	return files, nil
}

func (c *AVClient) putBlob(ctx context.Context, key string, data []byte) error {
	header := http.Header{}
	header.Set(remote.DigestHeader, remote.ContentDigest(data))

	resp, err := c.do(ctx, http.MethodPut, c.url(remote.BlobRoute, key), data, "application/octet-stream", header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// PullBlobs 下载远端目录到 localDir
// 文件先下载到 localDir 内的暂存目录，全部成功后才逐个移入；
// 移入中途失败时撤回已移入的文件，失败的拉取不会留下可能被误认为缓存命中的半成品
func (c *AVClient) PullBlobs(ctx context.Context, localDir, prefix string) error {
	// 1. 列目录
	files, err := c.list(ctx, prefix)
	if err != nil {
		return err
	}

	// 2. 准备暂存目录
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return &artifact.IOError{Op: "mkdir", Path: localDir, Err: err}
	}
	staging, err := os.MkdirTemp(localDir, ".pull-*")
	if err != nil {
		return &artifact.IOError{Op: "mkdir", Path: localDir, Err: err}
	}
	defer os.RemoveAll(staging)

	// 3. 并行下载
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, name := range files {
		g.Go(func() error {
			return c.getBlob(gctx, storage.Join(prefix, name), filepath.Join(staging, filepath.FromSlash(name)))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 4. 移入最终位置
	moved := make([]string, 0, len(files))
	rollback := func() {
		for _, p := range moved {
			_ = os.Remove(p)
		}
	}
	for _, name := range files {
		dst := filepath.Join(localDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			rollback()
			return &artifact.IOError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
		}
		if err := os.Rename(filepath.Join(staging, filepath.FromSlash(name)), dst); err != nil {
			rollback()
			return &artifact.IOError{Op: "rename", Path: dst, Err: err}
		}
		moved = append(moved, dst)
	}

	c.logger.Debug("blobs pulled", zap.String("prefix", prefix), zap.Int("files", len(files)))
	return nil
}

func (c *AVClient) list(ctx context.Context, prefix string) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.url(remote.ListRoute, prefix), nil, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("blobs under %s: %w", prefix, artifact.ErrNotFound)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var listing remote.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode blob list: %w", err)
	}
	// 服务端返回的名字会拼进本地路径，必须先校验
	for _, name := range listing.Files {
		if err := storage.ValidateKey(name); err != nil {
			return nil, fmt.Errorf("server listed unsafe name: %w", err)
		}
	}
	return listing.Files, nil
}

func (c *AVClient) getBlob(ctx context.Context, key, dst string) error {
	resp, err := c.do(ctx, http.MethodGet, c.url(remote.BlobRoute, key), nil, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return &artifact.IOError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	f, err := os.Create(dst)
	if err != nil {
		return &artifact.IOError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return &artifact.IOError{Op: "close", Path: dst, Err: err}
	}
	return nil
}

// =============================================================================
// HTTP
// =============================================================================

// url 拼接 /api/v2/<parts...>，每个路径段单独转义
func (c *AVClient) url(parts ...string) string {
	var segs []string
	for _, p := range parts {
		for _, s := range strings.Split(strings.Trim(p, "/"), "/") {
			segs = append(segs, url.PathEscape(s))
		}
	}
	u := *c.base
	u.Path = path.Join(c.base.Path, remote.APIPrefix)
	u.RawPath = ""
	return u.String() + "/" + strings.Join(segs, "/")
}

func (c *AVClient) do(ctx context.Context, method, target string, body []byte, contentType string, header http.Header) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	return resp, nil
}

// checkStatus 把非 2xx 响应转换为 *artifact.RemoteError
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body remote.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &artifact.RemoteError{Status: resp.StatusCode, Message: body.Message}
}

// IsNotFound 判断错误是否为远端 404 或未注册
func IsNotFound(err error) bool {
	if errors.Is(err, artifact.ErrNotFound) {
		return true
	}
	var re *artifact.RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}
