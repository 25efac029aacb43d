package filestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// deletedLogSize 删除记录最多保留的条数
const deletedLogSize = 1024

// MemoryStore 内存中的载荷集合，用于测试和显式配置 FILESTORE_TYPE=memory 的部署
type MemoryStore struct {
	mu      sync.Mutex
	dirs    map[string]bool
	deleted []string
	fail    map[string]error
}

// NewMemoryStore 创建内存载荷存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dirs: make(map[string]bool),
		fail: make(map[string]error),
	}
}

// Put 登记一个载荷目录
func (m *MemoryStore) Put(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[dir] = true
}

// Has 载荷目录是否存在
func (m *MemoryStore) Has(dir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[dir]
}

// FailOn 之后对 dir 的删除返回 err
func (m *MemoryStore) FailOn(dir string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[dir] = err
}

// Delete 删除载荷目录
func (m *MemoryStore) Delete(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDir)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[dir]; ok {
		return err
	}
	delete(m.dirs, dir)
	m.deleted = append(m.deleted, dir)
	if n := len(m.deleted); n > deletedLogSize {
		m.deleted = append(m.deleted[:0], m.deleted[n-deletedLogSize:]...)
	}
	return nil
}

// Deleted 最近删除的目录（按删除顺序，最多 deletedLogSize 条）
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// Dirs 当前存在的目录（排序）
func (m *MemoryStore) Dirs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.dirs))
	for d := range m.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
