package meta

import (
	"time"

	"gorm.io/datatypes"
)

// ArtifactRecord 是已注册元数据的规范副本
// 主键就是元数据 endpoint，与客户端计算的路径逐字节一致
type ArtifactRecord struct {
	Endpoint string `gorm:"primaryKey;type:varchar(512)"`

	Namespace string `gorm:"index:idx_artifact_scope;type:varchar(255)"`
	Kind      string `gorm:"index:idx_artifact_scope;type:varchar(64);not null"`
	UUID      string `gorm:"index;type:char(36);not null"`

	// Version 首次注册为 1，内容变化时 +1，同时作为乐观锁
	Version int64 `gorm:"not null;default:1"`

	// Content 是去掉服务端字段后的客户端元数据
	Content datatypes.JSON `gorm:"not null"`

	// Digest 是 Content 的 BLAKE3，用来判断重复注册是否为同一内容
	Digest string `gorm:"type:char(64);not null"`

	// RegisteredAt 首次注册时间 (Unix 秒)，之后不再改变
	// 对外即元数据的 created_at
	RegisteredAt int64 `gorm:"not null"`
	UpdatedAt    time.Time
}

func (ArtifactRecord) TableName() string {
	return "artifacts"
}
