// Package artifact defines the capability every artifact kind implements and
// the static registry that maps a kind to its plural name, metadata schema and
// loader.
package artifact

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"artifactvault/pkg/types"
)

// Metadata 是所有 Kind 元数据的最小公共形状 ({uuid})
// 各 Kind 在此基础上扩展领域字段
type Metadata interface {
	GetUUID() types.UUID
	Kind() types.Kind

	// Common 返回共享字段的指针，服务端通过它写入 version/created_at
	Common() *Base

	// Clone 返回深拷贝，元数据按值归属于 Artifact，不允许别名共享
	Clone() Metadata
}

// Artifact 是编排器唯一依赖的能力接口
// 编排器只对该接口泛型，从不依赖具体类型
type Artifact interface {
	Kind() types.Kind
	UUID() types.UUID
	Meta() Metadata

	// SetMeta 用规范元数据 (服务端返回) 替换内存中的副本
	SetMeta(m Metadata) error

	// SaveBlob 将 Kind 专属的 Blob 文件写入 dir (dir 已存在)
	SaveBlob(dir string) error
}

// Loader 从缓存目录加载 Artifact
// 干净的缓存未命中 (Blob 文件不存在) 返回 (nil, nil)，而不是错误，
// 这样编排器才能区分“未缓存”与“已损坏”
type Loader func(dir string, id types.UUID, meta Metadata) (Artifact, error)

// KindSpec 描述一个 Kind 的静态信息
type KindSpec struct {
	Kind types.Kind

	// Plural 小写复数名，用于 endpoint 和缓存路径，必须与服务端路由完全一致
	Plural string

	// NewMeta 返回该 Kind 的空元数据，用于解码
	NewMeta func() Metadata

	Load Loader
}

// registry 是显式的静态注册表，替代基于类型名的反射推导
var registry = map[types.Kind]KindSpec{
	KindModel: {
		Kind:    KindModel,
		Plural:  "models",
		NewMeta: func() Metadata { return &ModelMeta{} },
		Load:    LoadModel,
	},
	KindDataset: {
		Kind:    KindDataset,
		Plural:  "datasets",
		NewMeta: func() Metadata { return &DatasetMeta{} },
		Load:    LoadDataset,
	},
	KindTest: {
		Kind:    KindTest,
		Plural:  "tests",
		NewMeta: func() Metadata { return &TestMeta{} },
		Load:    LoadTest,
	},
}

// Lookup 返回 Kind 的注册信息
func Lookup(kind types.Kind) (KindSpec, error) {
	spec, ok := registry[kind]
	if !ok {
		return KindSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return spec, nil
}

// LookupPlural 根据复数名反查 (服务端路由使用)
func LookupPlural(plural string) (KindSpec, error) {
	for _, spec := range registry {
		if spec.Plural == plural {
			return spec, nil
		}
	}
	return KindSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, plural)
}

// Kinds 返回所有已注册的 Kind (按名字排序)
func Kinds() []types.Kind {
	kinds := make([]types.Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Base 是各 Kind 元数据共享的字段
// Version 和 CreatedAt 由服务端计算，注册成功前在客户端为零值
type Base struct {
	UUID      types.UUID `yaml:"uuid" json:"uuid"`
	Version   int64      `yaml:"version,omitempty" json:"version,omitempty"`
	CreatedAt int64      `yaml:"created_at,omitempty" json:"created_at,omitempty"` // Unix 秒
}

func (b Base) GetUUID() types.UUID { return b.UUID }
func (b *Base) Common() *Base       { return b }

// cloneSlice / cloneMap 深拷贝集合字段，空集合统一为 nil
// omitempty 编码后空集合与 nil 无法区分，只保留 nil 一种形式才能保证往返一致
func cloneSlice[S ~[]E, E any](s S) S {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

func cloneMap[M ~map[K]V, K comparable, V any](m M) M {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}

// setMeta 是 SetMeta 的通用实现：检查 Kind 和 uuid，然后深拷贝
func setMeta[T Metadata](dst *T, current types.UUID, m Metadata) error {
	typed, ok := m.(T)
	if !ok {
		return fmt.Errorf("%w: got %T", ErrKindMismatch, m)
	}
	if typed.GetUUID() != current {
		return fmt.Errorf("%w: artifact %s, metadata %s", ErrUUIDMismatch, current, typed.GetUUID())
	}
	*dst = typed.Clone().(T)
	return nil
}

// checkMeta 是 Loader 的通用前置检查
func checkMeta[T Metadata](id types.UUID, meta Metadata) (T, error) {
	typed, ok := meta.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T", ErrKindMismatch, meta)
	}
	if typed.GetUUID() != id {
		var zero T
		return zero, fmt.Errorf("%w: requested %s, metadata %s", ErrUUIDMismatch, id, typed.GetUUID())
	}
	return typed, nil
}
