// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"note-search-go/internal/config"
	"note-search-go/pkg/log"
)

// NewMinIO 创建 MinIO 客户端并确认存储桶存在。存储桶不存在或不可达时返回错误。
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("存储桶 '%s' 不存在", cfg.BucketName)
	}
	log.Infof("[Storage] MinIO 客户端初始化成功, 存储桶: %s", cfg.BucketName)
	return client, nil
}
