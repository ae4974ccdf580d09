package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/types"
)

// EncodeJSON 是元数据在 HTTP 线上的表示
func EncodeJSON(meta artifact.Metadata) ([]byte, error) {
	if meta == nil {
		return nil, fmt.Errorf("cannot encode nil metadata")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s metadata: %w", meta.Kind(), err)
	}
	return data, nil
}

// DecodeJSON 与 Decode 规则相同：未知字段、空文档、缺少 uuid 都视为 Schema 不匹配
func DecodeJSON(data []byte, kind types.Kind) (artifact.Metadata, error) {
	spec, err := artifact.Lookup(kind)
	if err != nil {
		return nil, err
	}

	meta := spec.NewMeta()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(meta); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty %s document", artifact.ErrMalformedMetadata, kind)
		}
		return nil, fmt.Errorf("%w: %s: %v", artifact.ErrMalformedMetadata, kind, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: %s: trailing content after metadata document", artifact.ErrMalformedMetadata, kind)
	}

	if err := checkUUID(meta, kind); err != nil {
		return nil, err
	}
	return meta.Clone(), nil
}
