package store

import (
	"context"
	"fmt"

	"baas-cache/internal/keys"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CreateAsset 创建媒体或存储对象；记录键已存在返回 false
func (s *Store) CreateAsset(ctx context.Context, a Asset) (bool, error) {
	if err := checkKind(a.Kind); err != nil {
		return false, err
	}
	if err := keys.Validate(a.ID); err != nil {
		return false, err
	}
	if err := keys.Validate(a.TenantID); err != nil {
		return false, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	var created bool
	err := s.do(ctx, "create_"+string(a.Kind), func(conn *redis.Conn) error {
		args := append([]interface{}{a.ID, keys.Member(a.TenantID, a.ID), s.score()}, a.fields()...)
		res, err := runScript(ctx, conn, createRecordScript,
			[]string{
				keys.Record(a.Kind, a.ID),
				keys.Members(a.TenantID, a.Kind),
				keys.Recency(a.Kind),
			},
			args...)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", a.Kind, err)
		}
		created = res == 1
		return nil
	})
	if created {
		s.logger.Debug("Asset created",
			zap.String("kind", string(a.Kind)),
			zap.String("tenant_id", a.TenantID),
			zap.String("id", a.ID))
	}
	return created, err
}

// AssetExists 只查询租户成员集合
func (s *Store) AssetExists(ctx context.Context, kind keys.Kind, tenantID, id string) (bool, error) {
	if err := checkKind(kind); err != nil {
		return false, err
	}
	return s.IsMember(ctx, keys.Members(tenantID, kind), id)
}

// GetAsset 读取资源；不属于该租户返回 ErrNotFound
func (s *Store) GetAsset(ctx context.Context, kind keys.Kind, tenantID, id string) (*Asset, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	var asset *Asset
	err := s.do(ctx, "get_"+string(kind), func(conn *redis.Conn) error {
		m, err := s.readScoped(ctx, conn, kind, tenantID, id)
		if err != nil {
			return err
		}
		asset = decodeAsset(kind, tenantID, id, m)
		return nil
	})
	return asset, err
}

// AssetDir 资源文件所在目录，用于删除载荷
func (s *Store) AssetDir(ctx context.Context, kind keys.Kind, tenantID, id string) (string, error) {
	a, err := s.GetAsset(ctx, kind, tenantID, id)
	if err != nil {
		return "", err
	}
	return a.Dir, nil
}

// UpdateAsset 覆盖资源字段并刷新时间索引；不属于该租户返回 false
// CreatedAt 为零值、Location 为 nil 时保留原值
func (s *Store) UpdateAsset(ctx context.Context, a Asset) (bool, error) {
	if err := checkKind(a.Kind); err != nil {
		return false, err
	}
	return s.updateScoped(ctx, "update_"+string(a.Kind), a.Kind, a.TenantID, a.ID, true, a.fields()...)
}

// DeleteAsset 物理删除资源（记录、成员、时间索引）
func (s *Store) DeleteAsset(ctx context.Context, kind keys.Kind, tenantID, id string) (bool, error) {
	if err := checkKind(kind); err != nil {
		return false, err
	}
	var deleted bool
	err := s.do(ctx, "delete_"+string(kind), func(conn *redis.Conn) error {
		res, err := runScript(ctx, conn, deleteAssetScript,
			[]string{
				keys.Record(kind, id),
				keys.Members(tenantID, kind),
				keys.Recency(kind),
			},
			id, keys.Member(tenantID, id))
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", kind, err)
		}
		deleted = res == 1
		return nil
	})
	if deleted {
		s.logger.Debug("Asset deleted",
			zap.String("kind", string(kind)),
			zap.String("tenant_id", tenantID),
			zap.String("id", id))
	}
	return deleted, err
}

func checkKind(kind keys.Kind) error {
	if !kind.Evictable() {
		return fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	return nil
}

// readScoped 成员判断后读取记录哈希
func (s *Store) readScoped(ctx context.Context, conn *redis.Conn, kind keys.Kind, tenantID, id string) (map[string]string, error) {
	ok, err := isMember(ctx, conn, keys.Members(tenantID, kind), id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	m, err := conn.HGetAll(ctx, keys.Record(kind, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kind, err)
	}
	if len(m) == 0 {
		s.logger.Warn("Member without record",
			zap.String("kind", string(kind)),
			zap.String("tenant_id", tenantID),
			zap.String("id", id))
		return nil, ErrNotFound
	}
	return m, nil
}

// updateScoped 写入仍属于租户的记录；refresh 为 false 时不动时间索引
func (s *Store) updateScoped(ctx context.Context, op string, kind keys.Kind, tenantID, id string, refresh bool, pairs ...interface{}) (bool, error) {
	var updated bool
	err := s.do(ctx, op, func(conn *redis.Conn) error {
		var score interface{} = ""
		if refresh {
			score = s.score()
		}
		args := append([]interface{}{id, keys.Member(tenantID, id), score}, pairs...)
		res, err := runScript(ctx, conn, updateRecordScript,
			[]string{
				keys.Record(kind, id),
				keys.Members(tenantID, kind),
				keys.Recency(kind),
			},
			args...)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", kind, err)
		}
		updated = res == 1
		return nil
	})
	return updated, err
}
