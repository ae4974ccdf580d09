package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"artifactvault/pkg/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	client *s3.Client
	bucket string
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Logger          *zap.Logger
}

// NewAdapter 初始化 S3 客户端
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// 1. 加载基础配置 (仅包含 Region 和 Credentials)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. 创建 S3 客户端时注入 Endpoint (使用 BaseEndpoint 而不是全局 Resolver)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO 必须使用 Path Style: http://host:9000/bucket/key
		o.UsePathStyle = true
	})

	// 3. 确保 Bucket 存在
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.Bucket})
	if err != nil {
		_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &cfg.Bucket})
		if err != nil {
			// 并发创建或权限不足时继续，真正的问题会在第一次读写时暴露
			logger.Warn("failed to ensure bucket exists", zap.String("bucket", cfg.Bucket), zap.Error(err))
		}
	}

	return &Adapter{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Put 上传对象 (覆盖写)
func (s *Adapter) Put(ctx context.Context, key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

// Get 下载对象
func (s *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 错误映射为我们自己的 ErrNotFound
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}

	return resp.Body, nil
}

// Has 检查对象是否存在
func (s *Adapter) Has(ctx context.Context, key string) (bool, error) {
	if err := storage.ValidateKey(key); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// 兼容性：某些 S3 实现可能返回 generic 404 error string
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}

	return false, err
}

// List 分页列出 prefix 下的所有 Key，返回相对路径
func (s *Adapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := storage.ValidateKey(prefix); err != nil {
		return nil, err
	}
	dirPrefix := strings.TrimSuffix(prefix, "/") + "/"

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(dirPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), dirPrefix))
		}
	}

	sort.Strings(names)
	return names, nil
}
