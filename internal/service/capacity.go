package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"baas-cache/internal/filestore"
	"baas-cache/internal/metrics"
	"baas-cache/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CapacityOptions 容量管理参数
type CapacityOptions struct {
	MaxMemoryBytes int64 // 0 表示不淘汰
	Interval       time.Duration
	Batch          int // 单轮最多处理的淘汰对象数
	Stream         string
	StreamMaxLen   int64
}

// CapacityManager 周期检查存储内存占用，超过阈值时按淘汰策略逐个移除资源
type CapacityManager struct {
	store   *store.Store
	files   filestore.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	opts    CapacityOptions
	memory  func(ctx context.Context) (int64, error)
}

// NewCapacityManager 创建容量管理器
func NewCapacityManager(st *store.Store, files filestore.Store, m *metrics.Metrics, logger *zap.Logger, opts CapacityOptions) *CapacityManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	return &CapacityManager{
		store:   st,
		files:   files,
		metrics: m,
		logger:  logger,
		opts:    opts,
		memory:  st.UsedMemory,
	}
}

// Run 定时检查直到 ctx 结束
func (c *CapacityManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	c.logger.Info("Starting capacity manager",
		zap.Int64("max_memory_bytes", c.opts.MaxMemoryBytes),
		zap.Duration("interval", c.opts.Interval),
		zap.String("policy", string(c.store.Policy())),
	)

	for {
		if _, err := c.ShedOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("Capacity check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ShedOnce 执行一轮检查：占用超过阈值时持续淘汰，直到回落、无可淘汰内容或达到单轮上限
// 返回本轮删除的资源数
func (c *CapacityManager) ShedOnce(ctx context.Context) (int, error) {
	if c.opts.MaxMemoryBytes <= 0 {
		return 0, nil
	}
	runID := uuid.New().String()
	logger := c.logger.With(zap.String("run_id", runID))

	evicted := 0
	for i := 0; i < c.opts.Batch; i++ {
		used, err := c.memory(ctx)
		if err != nil {
			return evicted, fmt.Errorf("failed to read used memory: %w", err)
		}
		c.metrics.SetUsedMemory(used)
		if used <= c.opts.MaxMemoryBytes {
			break
		}

		victim, err := c.store.SelectVictim(ctx)
		if errors.Is(err, store.ErrNoEvictableContent) {
			logger.Warn("Over capacity with nothing left to evict", zap.Int64("used_memory", used))
			break
		}
		if err != nil {
			return evicted, err
		}

		ok, err := c.evict(ctx, runID, logger, victim)
		if err != nil {
			return evicted, err
		}
		if ok {
			evicted++
		}
	}

	if evicted > 0 {
		logger.Info("Capacity shed completed", zap.Int("evicted", evicted))
	}
	return evicted, nil
}

// evict 删除载荷与记录并发布事件；载荷删除失败或记录已缺失时只移除时间索引条目
func (c *CapacityManager) evict(ctx context.Context, runID string, logger *zap.Logger, v *store.Victim) (bool, error) {
	fields := []zap.Field{
		zap.String("kind", string(v.Kind)),
		zap.String("tenant_id", v.TenantID),
		zap.String("id", v.ID),
		zap.Int64("score", v.Score),
	}

	if v.Asset == nil {
		logger.Warn("Dropping dangling recency entry", fields...)
		_, err := c.store.RemoveRecency(ctx, v.Kind, v.Member)
		return false, err
	}

	if v.Asset.Dir != "" {
		if err := c.files.Delete(ctx, v.Asset.Dir); err != nil {
			logger.Warn("Failed to delete payload, dropping recency entry", append(fields, zap.Error(err))...)
			_, err := c.store.RemoveRecency(ctx, v.Kind, v.Member)
			return false, err
		}
	}

	deleted, err := c.store.DeleteAsset(ctx, v.Kind, v.TenantID, v.ID)
	if err != nil {
		return false, err
	}
	if !deleted {
		// 并发删除：记录已不在，时间索引条目已被清理
		return false, nil
	}

	c.metrics.ObserveEviction(string(v.Kind))
	logger.Debug("Asset evicted", fields...)

	if c.opts.Stream != "" {
		_, err := c.store.Publish(ctx, c.opts.Stream, c.opts.StreamMaxLen, map[string]interface{}{
			"event":      "evicted",
			"run_id":     runID,
			"kind":       string(v.Kind),
			"tenant_id":  v.TenantID,
			"id":         v.ID,
			"score":      v.Score,
			"dir":        v.Asset.Dir,
			"evicted_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			logger.Warn("Failed to publish eviction event", append(fields, zap.Error(err))...)
		}
	}
	return true, nil
}
