package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// Blob 文件使用规范 (Canonical) CBOR 编码
// 保证相同内容重复保存时得到逐字节相同的文件
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序
	Sort: cbor.SortCanonical,

	// 2. 浮点数统一 64 位，避免精度随值变化
	ShortestFloat: cbor.ShortestFloatNone,

	// 3. 时间格式化为 Unix 整数
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 4. 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 限制容器大小和嵌套深度，防止恶意构造的 Blob 耗尽内存
	MaxArrayElements: 1 << 24,
	MaxMapPairs:      1 << 20,
	MaxNestedLevels:  32,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,

	// 未知字段视为格式不匹配
	ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
}

var dm, _ = decOptions.DecMode()

func encodeBlob(v any) ([]byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blob: %w", err)
	}
	return data, nil
}

func decodeBlob(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// writeBlobFile 原子写入：先写临时文件，再 Rename
// 要么文件不存在，要么文件是完整的
func writeBlobFile(dir, name string, data []byte) error {
	target := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".tmp-"+name+"-*")
	if err != nil {
		return &IOError{Op: "create", Path: target, Err: err}
	}
	// 成功 Rename 后这里的删除是无害的
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &IOError{Op: "write", Path: target, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &IOError{Op: "sync", Path: target, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: target, Err: err}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return &IOError{Op: "rename", Path: target, Err: err}
	}
	return nil
}

// readBlobFile 读取 Blob 文件
// 文件不存在返回 (nil, false, nil)，这是干净的缓存未命中
func readBlobFile(dir, name string) ([]byte, bool, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &IOError{Op: "read", Path: path, Err: err}
	}
	return data, true, nil
}
