package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"artifactvault/pkg/storage"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: /var/lib/av/blobs
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// layout 返回 Key 对应的物理路径
// Example: "global/models/<uuid>/model.cbor" -> root/global/models/<uuid>/model.cbor
func (s *Adapter) layout(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, filepath.FromSlash(key)), nil
}

func (s *Adapter) Put(ctx context.Context, key string, data []byte) error {
	targetPath, err := s.layout(key)
	if err != nil {
		return err
	}

	// 1. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 2. 原子写入 (Atomic Write)
	// 先写到临时文件再 Rename，读者要么看到旧文件，要么看到完整的新文件
	tempFile, err := os.CreateTemp(dir, ".temp-*")
	if err != nil {
		return err
	}
	// 成功 Rename 后这个删除无害
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil { // 必须先关闭才能 Rename
		return err
	}

	// 3. 移动到最终位置
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	targetPath, err := s.layout(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, key string) (bool, error) {
	targetPath, err := s.layout(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(targetPath)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// List 递归遍历 prefix 目录，跳过写入中的临时文件
func (s *Adapter) List(ctx context.Context, prefix string) ([]string, error) {
	base, err := s.layout(prefix)
	if err != nil {
		return nil, err
	}

	var names []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if matched, _ := filepath.Match(".temp-*", d.Name()); matched {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("disk list %s: %w", prefix, err)
	}

	sort.Strings(names)
	return names, nil
}
