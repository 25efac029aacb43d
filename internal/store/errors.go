package store

import (
	"errors"
	"io"
	"net"

	"baas-cache/internal/keys"
	"baas-cache/internal/pool"
)

var (
	// ErrNotFound 记录不存在或不属于该租户
	ErrNotFound = errors.New("record not found")
	// ErrEmailInUse 租户内邮箱已被占用
	ErrEmailInUse = errors.New("email already in use")
	// ErrUserNameInUse 租户内用户名已被占用
	ErrUserNameInUse = errors.New("user name already in use")
	// ErrNoEvictableContent 四个可淘汰索引都为空
	ErrNoEvictableContent = errors.New("no evictable content")
	// ErrInvalidKind 操作不支持该实体类型
	ErrInvalidKind = errors.New("invalid kind for operation")
)

// IsRetryable 判断错误是否为连接类故障（连接池耗尽、网络错误），
// 调用方可以重试；NotFound、唯一性冲突等是最终结果，不应重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pool.ErrPoolExhausted) {
		return true
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmailInUse) ||
		errors.Is(err, ErrUserNameInUse) || errors.Is(err, ErrNoEvictableContent) ||
		errors.Is(err, ErrInvalidKind) || errors.Is(err, keys.ErrInvalidID) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
