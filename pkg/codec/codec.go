// Package codec serializes artifact metadata to and from YAML.
//
// Encode and Decode are pure: file I/O is the caller's responsibility.
// Decoding is strict, so a document written for another kind (or another
// schema version) fails with artifact.ErrMalformedMetadata instead of being
// silently truncated.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/types"

	"gopkg.in/yaml.v3"
)

// Encode 将元数据编码为 YAML
// 字段顺序由结构体定义决定，重复编码结果逐字节一致 (diff 友好)
// 空集合的规范形式是 nil，对规范值 Decode(Encode(m)) 与 m 相等
func Encode(meta artifact.Metadata) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("cannot encode nil metadata")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return nil, fmt.Errorf("failed to encode %s metadata: %w", meta.Kind(), err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush %s metadata: %w", meta.Kind(), err)
	}
	return buf.Bytes(), nil
}

// Decode 按 kind 的 Schema 解码 YAML
func Decode(data []byte, kind types.Kind) (artifact.Metadata, error) {
	meta, err := decodeYAML(data, kind)
	if err != nil {
		return nil, err
	}
	if err := checkUUID(meta, kind); err != nil {
		return nil, err
	}
	return meta, nil
}

// DecodeDraft 解码用户手写的元数据 (CLI 输入)
// 规则与 Decode 相同，但 uuid 可以省略，服务端字段必须省略
func DecodeDraft(data []byte, kind types.Kind) (artifact.Metadata, error) {
	meta, err := decodeYAML(data, kind)
	if err != nil {
		return nil, err
	}
	if c := meta.Common(); c.Version != 0 || c.CreatedAt != 0 {
		return nil, fmt.Errorf("%w: %s: version and created_at are assigned by the server", artifact.ErrMalformedMetadata, kind)
	}
	if id := meta.GetUUID(); !id.IsZero() && !id.IsValid() {
		return nil, fmt.Errorf("%w: %s: invalid uuid %q", artifact.ErrMalformedMetadata, kind, id)
	}
	return meta, nil
}

// checkUUID uuid 必填且必须是规范形式
func checkUUID(meta artifact.Metadata, kind types.Kind) error {
	id := meta.GetUUID()
	if id.IsZero() {
		return fmt.Errorf("%w: %s: uuid is required", artifact.ErrMalformedMetadata, kind)
	}
	if !id.IsValid() {
		return fmt.Errorf("%w: %s: invalid uuid %q", artifact.ErrMalformedMetadata, kind, id)
	}
	return nil
}

func decodeYAML(data []byte, kind types.Kind) (artifact.Metadata, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return nil, err
	}

	meta := spec.NewMeta()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 未知字段 = Schema 不匹配
	if err := dec.Decode(meta); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty %s document", artifact.ErrMalformedMetadata, kind)
		}
		return nil, fmt.Errorf("%w: %s: %v", artifact.ErrMalformedMetadata, kind, err)
	}

	// 只允许单个文档
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: trailing content after metadata document", artifact.ErrMalformedMetadata, kind)
	}
	// 显式写出的空集合 (例如 "tags: []") 规范化为 nil
	return meta.Clone(), nil
}
