package manager

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/codec"
	"artifactvault/pkg/localstore"
	"artifactvault/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SpyRemote (间谍远端)
// 内存版的远端服务，统计每个方法被调用的次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyRemote struct {
	pushMetaCount  int32
	fetchMetaCount int32
	pushBlobCount  int32
	pullBlobCount  int32

	mu    sync.Mutex
	metas map[string][]byte            // endpoint -> YAML
	blobs map[string]map[string][]byte // prefix -> file -> content

	// 故障注入
	pushMetaErrs  []error // 依次消费
	pushBlobErr   error
	uuidOverride  types.UUID
	corruptBlobs  bool
	versionToSend int64
}

func NewSpyRemote() *SpyRemote {
	return &SpyRemote{
		metas:         make(map[string][]byte),
		blobs:         make(map[string]map[string][]byte),
		versionToSend: 1,
	}
}

func (s *SpyRemote) calls() int32 {
	return atomic.LoadInt32(&s.pushMetaCount) + atomic.LoadInt32(&s.fetchMetaCount) +
		atomic.LoadInt32(&s.pushBlobCount) + atomic.LoadInt32(&s.pullBlobCount)
}

func (s *SpyRemote) PushMetadata(ctx context.Context, endpoint string, meta artifact.Metadata) (artifact.Metadata, error) {
	atomic.AddInt32(&s.pushMetaCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pushMetaErrs) > 0 {
		err := s.pushMetaErrs[0]
		s.pushMetaErrs = s.pushMetaErrs[1:]
		return nil, err
	}

	// 服务端补全字段
	canonical := meta.Clone()
	canonical.Common().Version = s.versionToSend
	canonical.Common().CreatedAt = 1700000000
	if !s.uuidOverride.IsZero() {
		canonical.Common().UUID = s.uuidOverride
	}

	data, err := codec.Encode(canonical)
	if err != nil {
		return nil, err
	}
	s.metas[endpoint] = data
	return canonical, nil
}

func (s *SpyRemote) FetchMetadata(ctx context.Context, endpoint string, kind types.Kind) (artifact.Metadata, error) {
	atomic.AddInt32(&s.fetchMetaCount, 1)
	s.mu.Lock()
	data, ok := s.metas[endpoint]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, endpoint)
	}
	return codec.Decode(data, kind)
}

func (s *SpyRemote) PushBlobs(ctx context.Context, localDir, prefix string) error {
	atomic.AddInt32(&s.pushBlobCount, 1)
	if s.pushBlobErr != nil {
		return s.pushBlobErr
	}

	entries, err := os.ReadDir(localDir)
	if err != nil {
		return err
	}
	files := make(map[string][]byte)
	for _, e := range entries {
		if e.IsDir() || e.Name() == localstore.MetaFileName {
			continue
		}
		data, err := os.ReadFile(filepath.Join(localDir, e.Name()))
		if err != nil {
			return err
		}
		files[e.Name()] = data
	}

	s.mu.Lock()
	s.blobs[prefix] = files
	s.mu.Unlock()
	return nil
}

func (s *SpyRemote) PullBlobs(ctx context.Context, localDir, prefix string) error {
	atomic.AddInt32(&s.pullBlobCount, 1)
	s.mu.Lock()
	files, ok := s.blobs[prefix]
	files = maps.Clone(files)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", artifact.ErrNotFound, prefix)
	}
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return err
	}
	for name, data := range files {
		if s.corruptBlobs {
			data = []byte("garbage")
		}
		if err := os.WriteFile(filepath.Join(localDir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// 通用辅助函数
// -----------------------------------------------------------------------------

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(Config{Home: t.TempDir(), CacheDir: "cache"})
	require.NoError(t, err)
	return m
}

func sampleModel() *artifact.ModelArtifact {
	return artifact.NewModel(artifact.ModelMeta{
		Name:         "credit-lr",
		ModelType:    artifact.ModelClassification,
		FeatureNames: []string{"one", "two"},
		BatchSize:    127,
	}, map[string][]float64{"weights": {0.5, -1}, "bias": {0.1}})
}

// mustUpload 上传并断言成功
func mustUpload(t *testing.T, m *Manager, a artifact.Artifact, ns types.Namespace, mode Mode) {
	t.Helper()
	id, err := m.Upload(context.Background(), a, ns, mode)
	require.NoError(t, err)
	require.Equal(t, a.UUID(), id)
}

func snapshotDir(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string][]byte)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = data
	}
	return out
}

// brokenArtifact 的 SaveBlob 总是失败
type brokenArtifact struct {
	*artifact.ModelArtifact
}

var errDiskFull = errors.New("no space left on device")

func (brokenArtifact) SaveBlob(string) error { return errDiskFull }
