// Package manager orchestrates the artifact cache-and-sync protocol: upload
// (persist locally, push blobs, register metadata) and download (resolve
// metadata, load from cache, pull blobs on miss, load again).
//
// Calls are synchronous and the Manager holds no mutable state, so calls for
// distinct uuids may run in parallel. Calls for the same uuid are serialized on
// one host by an advisory lock on the cache directory; across hosts the single
// writer per uuid is the caller's responsibility.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/localstore"
	"artifactvault/pkg/remote"
	"artifactvault/pkg/types"

	"go.uber.org/zap"
)

// DefaultCacheDir 是相对 Home 的缓存子目录
const DefaultCacheDir = ".artifactvault/cache"

// Config 是缓存根目录的显式配置 (不使用全局可变状态)
type Config struct {
	Home     string // 为空时使用 os.UserHomeDir()
	CacheDir string // 为空时使用 DefaultCacheDir
}

// Root 返回 <home>/<cache-dir>
func (c Config) Root() (string, error) {
	home := c.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		home = h
	}
	cacheDir := c.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir
	}
	return filepath.Join(home, cacheDir), nil
}

// Manager 是 ArtifactCacheManager
type Manager struct {
	store  *localstore.Store
	logger *zap.Logger
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func New(cfg Config, opts ...Option) (*Manager, error) {
	root, err := cfg.Root()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		store:  localstore.New(root),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Store 暴露本地缓存 (CLI 的 ls/rm 使用)
func (m *Manager) Store() *localstore.Store { return m.store }

// CachePath 返回 Artifact 的本地缓存目录
func (m *Manager) CachePath(kind types.Kind, id types.UUID, ns types.Namespace) (string, error) {
	return m.store.Path(ns, kind, id)
}

// =============================================================================
// Upload
// =============================================================================

// Upload 持久化并发布 Artifact，返回其 uuid
//
//  1. 本地持久化 (Blob + meta.yaml)，失败返回 *LocalPersistError，不发起远端调用
//  2. PushBlobs，失败返回 *UploadError{PhasePushBlobs}，本地缓存仍然有效
//  3. PushMetadata，失败返回 *UploadError{PhaseRegisterMeta}，Blob 已在远端
//  4. 用服务端规范元数据替换内存中的副本
//
// LocalOnly 模式只执行第 1 步
func (m *Manager) Upload(ctx context.Context, a artifact.Artifact, ns types.Namespace, mode Mode) (types.UUID, error) {
	dir, err := m.store.Path(ns, a.Kind(), a.UUID())
	if err != nil {
		return "", &artifact.LocalPersistError{Err: err}
	}

	unlock, err := m.store.Lock(dir)
	if err != nil {
		return "", &artifact.LocalPersistError{Path: dir, Err: err}
	}
	defer m.release(unlock, dir)

	if err := m.persist(dir, a); err != nil {
		return "", err
	}
	m.logger.Debug("saved artifact locally",
		zap.String("kind", a.Kind().String()),
		zap.String("uuid", a.UUID().String()),
		zap.String("dir", dir))

	switch md := mode.(type) {
	case localOnlyMode:
		return a.UUID(), nil
	case networkedMode:
		if err := m.publish(ctx, md.client, dir, a, ns); err != nil {
			return "", err
		}
		return a.UUID(), nil
	default:
		panic(fmt.Sprintf("manager: unknown mode %T", mode))
	}
}

// RegisterMetadata 只重试元数据注册阶段
// 用于 Upload 返回 BlobsPublished() == true 的 UploadError 之后
func (m *Manager) RegisterMetadata(ctx context.Context, a artifact.Artifact, ns types.Namespace, client remote.Client) error {
	dir, err := m.store.Path(ns, a.Kind(), a.UUID())
	if err != nil {
		return &artifact.LocalPersistError{Err: err}
	}

	unlock, err := m.store.Lock(dir)
	if err != nil {
		return &artifact.LocalPersistError{Path: dir, Err: err}
	}
	defer m.release(unlock, dir)

	endpoint, err := remote.MetaEndpoint(a.Kind(), a.UUID(), ns)
	if err != nil {
		return err
	}
	prefix, err := remote.BlobPrefix(a.Kind(), a.UUID(), ns)
	if err != nil {
		return err
	}
	return m.register(ctx, client, dir, a, endpoint, prefix)
}

// persist 写入 Blob 和元数据，两者都成功才算成功
func (m *Manager) persist(dir string, a artifact.Artifact) error {
	if err := m.store.EnsureDir(dir); err != nil {
		return &artifact.LocalPersistError{Path: dir, Err: err}
	}
	if err := a.SaveBlob(dir); err != nil {
		return &artifact.LocalPersistError{Path: dir, Err: fmt.Errorf("save blob: %w", err)}
	}
	if err := m.store.WriteMetadata(dir, a.Meta()); err != nil {
		return &artifact.LocalPersistError{Path: dir, Err: fmt.Errorf("write metadata: %w", err)}
	}
	return nil
}

func (m *Manager) publish(ctx context.Context, client remote.Client, dir string, a artifact.Artifact, ns types.Namespace) error {
	endpoint, err := remote.MetaEndpoint(a.Kind(), a.UUID(), ns)
	if err != nil {
		return err
	}
	prefix, err := remote.BlobPrefix(a.Kind(), a.UUID(), ns)
	if err != nil {
		return err
	}

	if err := client.PushBlobs(ctx, dir, prefix); err != nil {
		return &artifact.UploadError{
			Phase: artifact.PhasePushBlobs, UUID: a.UUID(),
			Endpoint: endpoint, Prefix: prefix, Err: err,
		}
	}
	m.logger.Debug("pushed blobs", zap.String("prefix", prefix))

	return m.register(ctx, client, dir, a, endpoint, prefix)
}

func (m *Manager) register(ctx context.Context, client remote.Client, dir string, a artifact.Artifact, endpoint, prefix string) error {
	fail := func(err error) error {
		return &artifact.UploadError{
			Phase: artifact.PhaseRegisterMeta, UUID: a.UUID(),
			Endpoint: endpoint, Prefix: prefix, Err: err,
		}
	}

	canonical, err := client.PushMetadata(ctx, endpoint, a.Meta())
	if err != nil {
		return fail(err)
	}
	if canonical == nil {
		return fail(errors.New("server returned no metadata"))
	}

	// 不盲目信任服务端：uuid 必须与本地分配的一致
	if canonical.GetUUID() != a.UUID() {
		return fail(fmt.Errorf("%w: sent %s, server returned %s", artifact.ErrUUIDMismatch, a.UUID(), canonical.GetUUID()))
	}
	if err := a.SetMeta(canonical); err != nil {
		return fail(err)
	}

	// 本地缓存与服务端保持一致
	// 远端已经是完整状态，这里失败只记录日志：下一次联网 Download 会重写 meta.yaml
	if err := m.store.WriteMetadata(dir, a.Meta()); err != nil {
		m.logger.Warn("failed to refresh cached metadata after registration",
			zap.String("dir", dir), zap.Error(err))
	}

	m.logger.Debug("registered metadata", zap.String("endpoint", endpoint))
	return nil
}

// =============================================================================
// Download
// =============================================================================

// Download 返回一个完整可用的 Artifact，或者一个精确的错误
//
//  1. 解析元数据：LocalOnly 读本地 meta.yaml；Networked 总是向服务端确认
//  2. 尝试本地加载，命中则直接返回 (Blob 零网络往返)
//  3. 未命中：LocalOnly 返回 ErrNotFound；Networked 拉取 Blob 后再加载一次
//  4. 再次失败返回 *CorruptArtifactError，不再重试
func (m *Manager) Download(ctx context.Context, kind types.Kind, id types.UUID, ns types.Namespace, mode Mode) (artifact.Artifact, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return nil, err
	}
	dir, err := m.store.Path(ns, kind, id)
	if err != nil {
		return nil, err
	}

	// 本地模式未命中时直接返回：加锁会创建父目录和锁文件，只读查询不能在缓存里留下痕迹
	if _, ok := mode.(localOnlyMode); ok {
		meta, err := m.store.ReadMetadataIfPresent(dir, kind)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, fmt.Errorf("%w: %s %s has no cached metadata", artifact.ErrNotFound, kind, id)
		}
	}

	unlock, err := m.store.Lock(dir)
	if err != nil {
		return nil, err
	}
	defer m.release(unlock, dir)

	switch md := mode.(type) {
	case localOnlyMode:
		return m.downloadLocal(spec, dir, id)
	case networkedMode:
		return m.downloadNetworked(ctx, md.client, spec, dir, id, ns)
	default:
		panic(fmt.Sprintf("manager: unknown mode %T", mode))
	}
}

// DownloadAs 是带类型断言的 Download
func DownloadAs[T artifact.Artifact](ctx context.Context, m *Manager, kind types.Kind, id types.UUID, ns types.Namespace, mode Mode) (T, error) {
	var zero T
	a, err := m.Download(ctx, kind, id, ns, mode)
	if err != nil {
		return zero, err
	}
	typed, ok := a.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s loaded as %T", artifact.ErrKindMismatch, kind, a)
	}
	return typed, nil
}

func (m *Manager) downloadLocal(spec artifact.KindSpec, dir string, id types.UUID) (artifact.Artifact, error) {
	meta, err := m.store.ReadMetadataIfPresent(dir, spec.Kind)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s %s has no cached metadata", artifact.ErrNotFound, spec.Kind, id)
	}
	if meta.GetUUID() != id {
		return nil, fmt.Errorf("%w: cached metadata in %s belongs to %s", artifact.ErrMalformedMetadata, dir, meta.GetUUID())
	}

	a, err := spec.Load(dir, id, meta)
	if err != nil {
		// 本地模式下，无法解码与缺失同样致命，但保留原因
		return nil, fmt.Errorf("%w: cannot load cached %s %s: %v", artifact.ErrNotFound, spec.Kind, id, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s %s blob is not cached", artifact.ErrNotFound, spec.Kind, id)
	}

	m.logger.Debug("cache hit", zap.String("kind", spec.Kind.String()), zap.String("uuid", id.String()))
	return a, nil
}

func (m *Manager) downloadNetworked(ctx context.Context, client remote.Client, spec artifact.KindSpec, dir string, id types.UUID, ns types.Namespace) (artifact.Artifact, error) {
	endpoint, err := remote.MetaEndpoint(spec.Kind, id, ns)
	if err != nil {
		return nil, err
	}

	// 1. 服务端总是元数据新鲜度的权威
	meta, err := client.FetchMetadata(ctx, endpoint, spec.Kind)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", endpoint, err)
	}
	if meta.GetUUID() != id {
		return nil, fmt.Errorf("fetch metadata %s: %w: server returned %s", endpoint, artifact.ErrUUIDMismatch, meta.GetUUID())
	}

	// 2. 先查缓存
	a, loadErr := spec.Load(dir, id, meta)
	if loadErr == nil && a != nil {
		m.logger.Debug("cache hit", zap.String("endpoint", endpoint))
		return m.commitMetadata(dir, a)
	}
	m.logger.Debug("cache miss, pulling blobs",
		zap.String("endpoint", endpoint), zap.NamedError("load_error", loadErr))

	// 3. 拉取 Blob 目录后重试一次
	prefix, err := remote.BlobPrefix(spec.Kind, id, ns)
	if err != nil {
		return nil, err
	}
	if err := client.PullBlobs(ctx, dir, prefix); err != nil {
		return nil, fmt.Errorf("pull blobs %s: %w", prefix, err)
	}

	a, err = spec.Load(dir, id, meta)
	if err != nil || a == nil {
		// 远端存储与本地解码器不一致，不是瞬时故障
		return nil, &artifact.CorruptArtifactError{Kind: spec.Kind, UUID: id, Dir: dir, Err: err}
	}
	return m.commitMetadata(dir, a)
}

// commitMetadata 把解析到的元数据与 Blob 一起落盘
// 只在加载成功后写入，保证元数据永远不会脱离 Blob 单独存在
func (m *Manager) commitMetadata(dir string, a artifact.Artifact) (artifact.Artifact, error) {
	if err := m.store.WriteMetadata(dir, a.Meta()); err != nil {
		return nil, fmt.Errorf("cache metadata for %s: %w", a.UUID(), err)
	}
	return a, nil
}

func (m *Manager) release(unlock localstore.Unlock, dir string) {
	if err := unlock(); err != nil {
		m.logger.Warn("failed to release cache lock", zap.String("dir", dir), zap.Error(err))
	}
}
