package remote

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HTTP 协议中客户端与服务端共享的常量
const (
	APIPrefix    = "/api/v2"
	BlobRoute    = "artifacts"
	ListRoute    = "artifact-list"
	IndexRoute   = "artifact-index"
	DigestHeader = "X-Content-Blake3"
)

// ListResponse 是 GET /api/v2/artifact-list/<prefix> 的响应体
type ListResponse struct {
	Files []string `json:"files"`
}

// IndexEntry 是注册表中的一条记录摘要
type IndexEntry struct {
	Endpoint  string `json:"endpoint"`
	UUID      string `json:"uuid"`
	Version   int64  `json:"version"`
	CreatedAt int64  `json:"created_at"`
}

// IndexResponse 是 GET /api/v2/artifact-index/<plural>?namespace=<ns> 的响应体
type IndexResponse struct {
	Artifacts []IndexEntry `json:"artifacts"`
}

// ErrorResponse 是所有非 2xx 响应的响应体
type ErrorResponse struct {
	Message string `json:"message"`
}

// ContentDigest 返回 Blob 的 BLAKE3 十六进制摘要
func ContentDigest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
