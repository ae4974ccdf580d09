// Package localstore manages the on-disk artifact cache.
//
// Layout: <root>/<namespace-or-global>/<kind-plural>/<uuid>/ holding meta.yaml
// plus the kind-specific blob files. The store owns metadata I/O; blob files
// are written and read by the artifact kinds themselves.
package localstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/codec"
	"artifactvault/pkg/types"
)

// MetaFileName 是缓存目录中元数据文件的名字
const MetaFileName = "meta.yaml"

var ErrInvalidKey = errors.New("invalid cache key")

// Store 管理一个缓存根目录
type Store struct {
	root string // 比如: /home/user/.artifactvault/cache
}

// New 创建本地缓存存储，根目录按需懒创建
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string { return s.root }

// Path 返回 (namespace, kind, uuid) 对应的规范缓存路径
func (s *Store) Path(ns types.Namespace, kind types.Kind, id types.UUID) (string, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return "", err
	}
	if !ns.IsValid() {
		return "", fmt.Errorf("%w: namespace %q", ErrInvalidKey, ns)
	}
	if !id.IsValid() {
		return "", fmt.Errorf("%w: uuid %q", ErrInvalidKey, id)
	}
	return filepath.Join(s.root, ns.OrGlobal(), spec.Plural, id.String()), nil
}

// EnsureDir 幂等地创建目录
func (s *Store) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &artifact.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// WriteMetadata 完整覆盖 dir/meta.yaml
// 先写临时文件再 Rename，所有退出路径都会关闭句柄
func (s *Store) WriteMetadata(dir string, meta artifact.Metadata) error {
	data, err := codec.Encode(meta)
	if err != nil {
		return err
	}

	target := filepath.Join(dir, MetaFileName)
	tmp, err := os.CreateTemp(dir, ".tmp-meta-*")
	if err != nil {
		return &artifact.IOError{Op: "create", Path: target, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &artifact.IOError{Op: "write", Path: target, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &artifact.IOError{Op: "sync", Path: target, Err: err}
	}
	// 必须先关闭才能 Rename
	if err := tmp.Close(); err != nil {
		return &artifact.IOError{Op: "close", Path: target, Err: err}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return &artifact.IOError{Op: "rename", Path: target, Err: err}
	}
	return nil
}

// ReadMetadataIfPresent 读取 dir/meta.yaml
// 文件不存在返回 (nil, nil)：缓存未命中不是错误
func (s *Store) ReadMetadataIfPresent(dir string, kind types.Kind) (artifact.Metadata, error) {
	path := filepath.Join(dir, MetaFileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &artifact.IOError{Op: "read", Path: path, Err: err}
	}
	return codec.Decode(data, kind)
}

// List 列出某个 namespace/kind 下已缓存的 uuid
func (s *Store) List(ns types.Namespace, kind types.Kind) ([]types.UUID, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return nil, err
	}
	kindDir := filepath.Join(s.root, ns.OrGlobal(), spec.Plural)

	entries, err := os.ReadDir(kindDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &artifact.IOError{Op: "readdir", Path: kindDir, Err: err}
	}

	var ids []types.UUID
	for _, e := range entries {
		// 跳过锁文件和临时文件
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, types.UUID(e.Name()))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Remove 删除一个缓存条目 (不存在时是 no-op)
func (s *Store) Remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return &artifact.IOError{Op: "remove", Path: dir, Err: err}
	}
	return nil
}

// Namespaces 列出缓存中出现过的命名空间 ("global" 映射为空命名空间)
func (s *Store) Namespaces() ([]types.Namespace, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &artifact.IOError{Op: "readdir", Path: s.root, Err: err}
	}

	var out []types.Namespace
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ns := types.Namespace(e.Name())
		if e.Name() == types.GlobalNamespace {
			ns = ""
		}
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
