// Package pool 有界连接池：每个操作独占一条 Redis 连接，
// 在所有退出路径上（正常返回、错误返回、panic）归还。
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"baas-cache/internal/metrics"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrPoolExhausted 在 AcquireTimeout 内没有空闲连接
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrClosed 连接池已关闭
	ErrClosed = errors.New("connection pool closed")
)

// DefaultSize 未配置时的连接池大小
const DefaultSize = 8

// Options 连接池参数，启动后不可变
type Options struct {
	Size           int
	AcquireTimeout time.Duration
	Metrics        *metrics.Metrics
}

// Stats 连接池计数
type Stats struct {
	Size     int
	InUse    int64
	Acquired int64
	Timeouts int64
}

// Pool 固定大小的连接池
type Pool struct {
	client  *redis.Client
	sem     *semaphore.Weighted
	size    int
	timeout time.Duration
	metrics *metrics.Metrics

	inUse    atomic.Int64
	acquired atomic.Int64
	timeouts atomic.Int64
	closed   atomic.Bool
}

// New 创建连接池；client 的 PoolSize 应不小于 opts.Size
func New(client *redis.Client, opts Options) *Pool {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	return &Pool{
		client:  client,
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		timeout: opts.AcquireTimeout,
		metrics: opts.Metrics,
	}
}

// Acquire 获取一个连接句柄，阻塞直到有空闲槽位、超时或 ctx 结束
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	waitCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.timeouts.Add(1)
		p.metrics.ObserveTimeout()
		return nil, fmt.Errorf("%w after %s", ErrPoolExhausted, p.timeout)
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, ErrClosed
	}

	p.inUse.Add(1)
	p.acquired.Add(1)
	p.metrics.ObserveAcquire(time.Since(start))

	return &Handle{
		conn: p.client.Conn(ctx),
		pool: p,
	}, nil
}

// Do 以作用域方式执行 fn：获取、执行、无论如何都释放
func (p *Pool) Do(ctx context.Context, fn func(conn *redis.Conn) error) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h.Conn())
}

// Stats 返回当前计数快照
func (p *Pool) Stats() Stats {
	return Stats{
		Size:     p.size,
		InUse:    p.inUse.Load(),
		Acquired: p.acquired.Load(),
		Timeouts: p.timeouts.Load(),
	}
}

// Close 拒绝新的 Acquire 并关闭底层客户端；重复调用无副作用
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.client.Close()
}

func (p *Pool) release() {
	p.inUse.Add(-1)
	p.metrics.ObserveRelease()
	p.sem.Release(1)
}

// Handle 一次操作持有的连接
type Handle struct {
	conn *redis.Conn
	pool *Pool
	once sync.Once
}

// Conn 返回独占连接；Release 之后不可再使用
func (h *Handle) Conn() *redis.Conn {
	return h.conn
}

// Release 归还连接；重复调用是空操作
func (h *Handle) Release() {
	h.once.Do(func() {
		_ = h.conn.Close()
		h.pool.release()
	})
}
