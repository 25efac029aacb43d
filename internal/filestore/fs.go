package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore 本地目录下的载荷：<root>/<dir>/...
type FSStore struct {
	root string
}

// NewFSStore 创建本地载荷存储，根目录不存在时创建
func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FSStore{root: abs}, nil
}

// Delete 删除 dir 及其下所有文件
func (s *FSStore) Delete(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(dir)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}

// resolve 把 dir 限定在根目录内
func (s *FSStore) resolve(dir string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(dir))
	if clean == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDir, dir)
	}
	path := filepath.Join(s.root, clean)
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDir, dir)
	}
	return path, nil
}
