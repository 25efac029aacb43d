// Package filestore 媒体与存储对象载荷的删除端。记录层只保存 dir，
// 删除资源时由这里清理 dir 下的实际文件。
package filestore

import (
	"context"
	"errors"
	"fmt"

	"baas-cache/common/config"
)

// ErrInvalidDir dir 为空或逃逸出根目录
var ErrInvalidDir = errors.New("invalid payload directory")

// Store 载荷存储；Delete 对不存在的 dir 返回 nil
type Store interface {
	Delete(ctx context.Context, dir string) error
}

// Config 载荷存储配置
type Config struct {
	Type string // fs | s3 | memory
	Root string
	S3   config.S3Config
}

// NewFromConfig 按类型创建载荷存储
func NewFromConfig(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "":
		return nil, fmt.Errorf("filestore type is required (fs, s3 or memory)")
	case "memory":
		return NewMemoryStore(), nil
	case "fs", "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem store requires FILESTORE_ROOT to be set")
		}
		return NewFSStore(cfg.Root)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown filestore type: %s", cfg.Type)
	}
}
