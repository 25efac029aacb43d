package service

import (
	"context"
	"testing"
	"time"

	"baas-cache/internal/config"
	"baas-cache/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(addr string) *config.Config {
	cfg := &config.Config{}
	cfg.Redis.Addr = addr
	cfg.Pool.Size = 2
	cfg.Pool.AcquireTimeout = time.Second
	cfg.Capacity.Policy = "oldest"
	cfg.Capacity.CheckInterval = time.Hour
	cfg.FileStore.Type = "memory"
	return cfg
}

func TestNewCacheService(t *testing.T) {
	mr := miniredis.RunT(t)
	cs, err := NewCacheService(testConfig(mr.Addr()), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, store.PolicyOldest, cs.Store().Policy())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cs.Start(ctx) }()

	created, err := cs.Service().CreateApp(context.Background(), "t1", "demo", false)
	require.NoError(t, err)
	assert.True(t, created)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.NoError(t, cs.Stop(ctx))
}

func TestNewCacheService_Errors(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(mr.Addr())
	cfg.Capacity.Policy = "random"
	_, err := NewCacheService(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(mr.Addr())
	cfg.FileStore.Type = ""
	_, err = NewCacheService(cfg, zap.NewNop())
	assert.Error(t, err)

	// 默认的 fs 类型必须给出根目录
	cfg = testConfig(mr.Addr())
	cfg.FileStore.Type = "fs"
	_, err = NewCacheService(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(mr.Addr())
	cfg.FileStore.Type = "tape"
	_, err = NewCacheService(cfg, zap.NewNop())
	assert.Error(t, err)

	addr := mr.Addr()
	mr.Close()
	_, err = NewCacheService(testConfig(addr), zap.NewNop())
	assert.Error(t, err)
}
