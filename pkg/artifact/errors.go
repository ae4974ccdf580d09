package artifact

import (
	"errors"
	"fmt"

	"artifactvault/pkg/types"
)

var (
	// ErrNotFound 在任何可达位置 (本地缓存或远端) 都找不到该 Artifact
	ErrNotFound = errors.New("artifact not found")

	// ErrMalformedMetadata 元数据与其 Kind 的 Schema 不匹配 (通常是格式/版本不一致)
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrUUIDMismatch 服务端返回的规范元数据 uuid 与本地分配的不一致
	ErrUUIDMismatch = errors.New("uuid mismatch between artifact and metadata")

	ErrUnknownKind  = errors.New("unknown artifact kind")
	ErrKindMismatch = errors.New("metadata does not belong to this artifact kind")
)

// IOError 表示本地磁盘读写失败
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// LocalPersistError 表示 Upload 的本地持久化阶段失败
// 此时没有发起任何远端调用
type LocalPersistError struct {
	Path string
	Err  error
}

func (e *LocalPersistError) Error() string {
	return fmt.Sprintf("failed to persist artifact locally at %s: %v", e.Path, e.Err)
}

func (e *LocalPersistError) Unwrap() error { return e.Err }

// Phase 标识 Upload 中未完成的远端阶段
type Phase string

const (
	PhasePushBlobs    Phase = "push-blobs"
	PhaseRegisterMeta Phase = "register-meta"
)

// UploadError 表示本地持久化成功之后的远端阶段失败
//   - PhasePushBlobs: 本地缓存有效，远端没有记录，整个 Upload 可以重试
//   - PhaseRegisterMeta: Blob 已在远端，只需重试元数据注册
type UploadError struct {
	Phase    Phase
	UUID     types.UUID
	Endpoint string // 元数据 endpoint
	Prefix   string // Blob 前缀
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed during %s (endpoint=%s prefix=%s): %v",
		e.UUID, e.Phase, e.Endpoint, e.Prefix, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// BlobsPublished 为 true 时，重试只需要重新注册元数据
func (e *UploadError) BlobsPublished() bool { return e.Phase == PhaseRegisterMeta }

// CorruptArtifactError 远端拉取成功后，本地解码仍然失败
// 说明远端存储与本地解码器不一致，不是瞬时故障，不再重试
type CorruptArtifactError struct {
	Kind types.Kind
	UUID types.UUID
	Dir  string
	Err  error
}

func (e *CorruptArtifactError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("corrupt artifact %s %s in %s: blob missing after pull", e.Kind, e.UUID, e.Dir)
	}
	return fmt.Sprintf("corrupt artifact %s %s in %s: %v", e.Kind, e.UUID, e.Dir, e.Err)
}

func (e *CorruptArtifactError) Unwrap() error { return e.Err }

// RemoteError 是远端协作者返回的非成功响应，原样透传 status/message
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (status %d): %s", e.Status, e.Message)
}
