// pkg/types/common.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

// UUID 是 Artifact 的全局唯一标识符
// 创建时分配，之后永不改变 (值对象)
type UUID string

// NewUUID 分配一个新的随机 UUID (v4)
func NewUUID() UUID { return UUID(uuid.NewString()) }

func (u UUID) String() string { return string(u) }
func (u UUID) IsZero() bool   { return u == "" }

// IsValid 检查是否为规范形式的 UUID 文本 (36 字符，小写，带连字符)
// uuid.Parse 也接受 urn:uuid:、花括号、无连字符和大写形式，
// 这些形式会让同一个 Artifact 落到不同的缓存目录和 Endpoint，因此一律拒绝
// 注意：它同时保证了 uuid 可以安全地作为路径片段使用 (不含 "/" 或 "..")
func (u UUID) IsValid() bool {
	parsed, err := uuid.Parse(string(u))
	return err == nil && parsed.String() == string(u)
}

// GlobalNamespace 是未指定项目时使用的命名空间
const GlobalNamespace = "global"

// Namespace 是可选的项目键 (project key)
// 空字符串表示 "global"，它只作为路径前缀使用
type Namespace string

func (n Namespace) String() string { return string(n) }
func (n Namespace) IsGlobal() bool { return n == "" }

// OrGlobal 返回用于本地缓存和 Blob 前缀的目录名
func (n Namespace) OrGlobal() string {
	if n.IsGlobal() {
		return GlobalNamespace
	}
	return string(n)
}

// IsValid 命名空间必须是单个路径片段
func (n Namespace) IsValid() bool {
	if n.IsGlobal() {
		return true
	}
	s := string(n)
	return s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// Kind 是 Artifact 的种类名 (例如 "Model")
// 复数形式和元数据 Schema 由 artifact 包中的静态注册表决定
type Kind string

func (k Kind) String() string { return string(k) }

// Digest 是 Blob 文件内容的 BLAKE3 摘要 (Hex String)
type Digest string

func (d Digest) String() string { return string(d) }
func (d Digest) IsValid() bool  { return len(d) == 64 }
