package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Store defines the interface for a blob storage backend.
// Keys are slash-separated paths such as "global/models/<uuid>/model.cbor".
// Implementations can be local disk, cloud storage, or in-memory storage.
type Store interface {
	// Put 写入一个对象，已存在时整体覆盖
	Put(ctx context.Context, key string, data []byte) error

	// Get 读取对象内容
	// 返回 io.ReadCloser 以支持大文件的流式读取
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Has 检查对象是否存在
	Has(ctx context.Context, key string) (bool, error)

	// List 返回 prefix 目录下所有对象的相对路径 (已排序)
	// prefix 不存在时返回空列表而不是错误
	List(ctx context.Context, prefix string) ([]string, error)
}

// ValidateKey 拒绝空段、"." 和 ".." 段，防止路径穿越
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, '\\') {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// Join 拼接 prefix 与相对路径
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
