package meta

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"artifactvault/pkg/artifact"
	"artifactvault/pkg/codec"
	"artifactvault/pkg/remote"
	"artifactvault/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrArtifactNotFound = errors.New("artifact not registered")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
	ErrEndpointMismatch = errors.New("metadata does not match endpoint")
	ErrImmutable        = errors.New("artifact metadata is immutable once registered")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db  *DB
	now func() time.Time
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Register 注册 (或重新注册) endpoint 上的元数据，返回规范记录
//
// 版本规则:
//   - 首次注册: version=1, created_at=now
//   - 内容相同的重复注册 (例如客户端重试): 原样返回，不改版本
//   - 内容变化: 返回 ErrImmutable，已注册的记录保持不变
func (r *Repository) Register(ctx context.Context, endpoint string, meta artifact.Metadata) (*ArtifactRecord, error) {
	// 1. endpoint 必须和元数据自身描述的 Artifact 一致
	target, err := remote.ParseMetaEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	if target.Kind != meta.Kind() || target.UUID != meta.GetUUID() {
		return nil, fmt.Errorf("%w: endpoint %s, metadata %s %s",
			ErrEndpointMismatch, endpoint, meta.Kind(), meta.GetUUID())
	}

	// 2. 去掉服务端字段后计算内容摘要
	content, digest, err := clientContent(meta)
	if err != nil {
		return nil, err
	}

	var record ArtifactRecord
	err = r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("endpoint = ?", endpoint).First(&record).Error

		// 场景 A: 首次注册
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record = ArtifactRecord{
				Endpoint:     endpoint,
				Namespace:    target.Namespace.String(),
				Kind:         string(target.Kind),
				UUID:         target.UUID.String(),
				Version:      1,
				Content:      datatypes.JSON(content),
				Digest:       digest,
				RegisteredAt: r.now().Unix(),
			}
			if err := tx.Create(&record).Error; err != nil {
				// 兼容 PG 与 SQLite 的唯一约束错误
				if errors.Is(err, gorm.ErrDuplicatedKey) ||
					strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to create artifact record: %w", err)
			}
			return nil
		}
		if err != nil {
			return err
		}

		// 场景 B: 幂等重试
		if record.Digest == digest {
			return nil
		}

		// 场景 C: 内容变化，同一个 uuid 不能指向两份内容
		return fmt.Errorf("%w: %s (registered digest %s, got %s)", ErrImmutable, endpoint, record.Digest, digest)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get 按 endpoint 读取记录
func (r *Repository) Get(ctx context.Context, endpoint string) (*ArtifactRecord, error) {
	var record ArtifactRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("endpoint = ?", endpoint).
		First(&record).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByScope 按命名空间和 Kind 列出记录 (最新注册在前)
func (r *Repository) ListByScope(ctx context.Context, ns types.Namespace, kind types.Kind, limit int) ([]ArtifactRecord, error) {
	var records []ArtifactRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("namespace = ? AND kind = ?", ns.String(), string(kind)).
		Order("registered_at DESC").
		Order("endpoint").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Metadata 把记录还原为带服务端字段的规范元数据
func (rec *ArtifactRecord) Metadata() (artifact.Metadata, error) {
	meta, err := codec.DecodeJSON(rec.Content, types.Kind(rec.Kind))
	if err != nil {
		return nil, fmt.Errorf("stored record %s: %w", rec.Endpoint, err)
	}
	common := meta.Common()
	common.Version = rec.Version
	common.CreatedAt = rec.RegisteredAt
	return meta, nil
}

func clientContent(meta artifact.Metadata) ([]byte, string, error) {
	clean := meta.Clone()
	common := clean.Common()
	common.Version = 0
	common.CreatedAt = 0

	content, err := codec.EncodeJSON(clean)
	if err != nil {
		return nil, "", err
	}
	// 结构体字段顺序固定，map 按 key 排序，相同内容得到相同字节
	return content, remote.ContentDigest(content), nil
}
