// Package remote defines the contract between the cache manager and the
// remote artifact service, together with the endpoint naming rules both sides
// must reproduce bit for bit.
package remote

import (
	"context"
	"fmt"
	"path"
	"strings"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/types"
)

// Client 抽象了所有网络调用，实现位于核心之外 (见 pkg/client)
// 超时、重试、取消都由实现负责，通过 ctx 传入
type Client interface {
	// PushMetadata 在服务端注册元数据，返回规范 (可能被补全的) 元数据
	// 非成功响应返回 *artifact.RemoteError
	PushMetadata(ctx context.Context, endpoint string, meta artifact.Metadata) (artifact.Metadata, error)

	// FetchMetadata 未注册时返回 artifact.ErrNotFound
	FetchMetadata(ctx context.Context, endpoint string, kind types.Kind) (artifact.Metadata, error)

	// PushBlobs 上传 localDir 下的所有 Blob 文件 (不包含 meta.yaml)
	// 部分失败时，远端对该目录要么完全不存在，要么完全存在
	PushBlobs(ctx context.Context, localDir, prefix string) error

	// PullBlobs 把远端目录下载到 localDir (不存在则创建)
	// 前缀下没有对象时返回 artifact.ErrNotFound
	PullBlobs(ctx context.Context, localDir, prefix string) error
}

const projectSegment = "project"

// CompleteMarker 是 PushBlobs 最后写入的标记对象
// 服务端只有在它存在时才返回目录列表，读者因此看不到写了一半的目录
const CompleteMarker = ".complete"

// MetaEndpoint 计算元数据 endpoint:
//
//	<kind-plural>/<uuid>
//	project/<namespace>/<kind-plural>/<uuid>
func MetaEndpoint(kind types.Kind, id types.UUID, ns types.Namespace) (string, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return "", err
	}
	if ns.IsGlobal() {
		return path.Join(spec.Plural, id.String()), nil
	}
	return path.Join(projectSegment, ns.String(), spec.Plural, id.String()), nil
}

// BlobPrefix 计算 Blob 目录在远端的 key 前缀:
//
//	<namespace-or-global>/<kind-plural>/<uuid>
//
// 注意它和 MetaEndpoint 不同：Blob 总是带命名空间段
func BlobPrefix(kind types.Kind, id types.UUID, ns types.Namespace) (string, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return "", err
	}
	return path.Join(ns.OrGlobal(), spec.Plural, id.String()), nil
}

// Target 是 endpoint / 前缀解析后的结果
type Target struct {
	Namespace types.Namespace
	Kind      types.Kind
	UUID      types.UUID
}

// ParseMetaEndpoint 是 MetaEndpoint 的逆运算 (服务端路由使用)
func ParseMetaEndpoint(endpoint string) (Target, error) {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")

	var ns types.Namespace
	switch {
	case len(parts) == 2:
	case len(parts) == 4 && parts[0] == projectSegment:
		ns = types.Namespace(parts[1])
		parts = parts[2:]
	default:
		return Target{}, fmt.Errorf("malformed metadata endpoint %q", endpoint)
	}
	return newTarget(ns, parts[0], parts[1], endpoint)
}

// ParseBlobPrefix 是 BlobPrefix 的逆运算
func ParseBlobPrefix(prefix string) (Target, error) {
	parts := strings.Split(strings.Trim(prefix, "/"), "/")
	if len(parts) != 3 {
		return Target{}, fmt.Errorf("malformed blob prefix %q", prefix)
	}
	ns := types.Namespace(parts[0])
	if parts[0] == types.GlobalNamespace {
		ns = ""
	}
	return newTarget(ns, parts[1], parts[2], prefix)
}

func newTarget(ns types.Namespace, plural, id, raw string) (Target, error) {
	spec, err := artifact.LookupPlural(plural)
	if err != nil {
		return Target{}, err
	}
	uid := types.UUID(id)
	if !uid.IsValid() || !ns.IsValid() {
		return Target{}, fmt.Errorf("malformed artifact path %q", raw)
	}
	return Target{Namespace: ns, Kind: spec.Kind, UUID: uid}, nil
}
