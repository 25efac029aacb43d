package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	rediscommon "baas-cache/common/redis"
	"baas-cache/internal/auth"
	"baas-cache/internal/config"
	"baas-cache/internal/filestore"
	"baas-cache/internal/metrics"
	"baas-cache/internal/pool"
	"baas-cache/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CacheService 进程级组装：Redis 连接池、记录存储、载荷存储、容量管理与 /metrics
type CacheService struct {
	config   *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	pool     *pool.Pool
	store    *store.Store
	files    filestore.Store
	service  *Service
	capacity *CapacityManager
	server   *http.Server
}

// NewCacheService 按配置创建服务并检查 Redis 连通性
func NewCacheService(cfg *config.Config, logger *zap.Logger) (*CacheService, error) {
	policy, err := store.ParsePolicy(cfg.Capacity.Policy)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	redisClient := rediscommon.NewRedisClient(&cfg.Redis, &cfg.Pool)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	p := pool.New(redisClient, pool.Options{
		Size:           cfg.Pool.Size,
		AcquireTimeout: cfg.Pool.AcquireTimeout,
		Metrics:        m,
	})
	st := store.New(p, logger, store.WithPolicy(policy), store.WithMetrics(m))

	files, err := filestore.NewFromConfig(context.Background(), cfg.FileStore)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}

	svc := New(st, files, auth.NewArgon2Hasher(auth.DefaultParams), logger)
	capacity := NewCapacityManager(st, files, m, logger, CapacityOptions{
		MaxMemoryBytes: cfg.Capacity.MaxMemoryBytes,
		Interval:       cfg.Capacity.CheckInterval,
		Batch:          cfg.Capacity.Batch,
		Stream:         cfg.Capacity.EventStream,
		StreamMaxLen:   cfg.Capacity.StreamMaxLen,
	})

	return &CacheService{
		config:   cfg,
		logger:   logger,
		registry: registry,
		pool:     p,
		store:    st,
		files:    files,
		service:  svc,
		capacity: capacity,
	}, nil
}

// Service 门面
func (s *CacheService) Service() *Service {
	return s.service
}

// Store 记录存储
func (s *CacheService) Store() *store.Store {
	return s.store
}

// Capacity 容量管理器
func (s *CacheService) Capacity() *CapacityManager {
	return s.capacity
}

// Start 启动 /metrics 并运行容量管理，阻塞直到 ctx 结束
func (s *CacheService) Start(ctx context.Context) error {
	s.logger.Info("Starting cache service",
		zap.String("redis_addr", s.config.Redis.Addr),
		zap.Int("pool_size", s.config.Pool.Size),
		zap.String("eviction_policy", s.config.Capacity.Policy),
		zap.String("filestore", s.config.FileStore.Type),
	)

	if s.config.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
		s.server = &http.Server{Addr: s.config.Metrics.Addr, Handler: mux}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		s.logger.Info("Metrics listening", zap.String("addr", s.config.Metrics.Addr))
	}

	return s.capacity.Run(ctx)
}

// Stop 关闭 /metrics 和连接池
func (s *CacheService) Stop(ctx context.Context) error {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Failed to shut down metrics server", zap.Error(err))
		}
	}
	return s.pool.Close()
}
