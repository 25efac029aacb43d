package store

import (
	"context"
	"fmt"
	"sort"

	"baas-cache/internal/keys"

	"github.com/go-redis/redis/v8"
)

// AddMember 向集合加入成员，返回是否新加入
func (s *Store) AddMember(ctx context.Context, set, member string) (bool, error) {
	var added bool
	err := s.do(ctx, "add_member", func(conn *redis.Conn) error {
		n, err := conn.SAdd(ctx, set, member).Result()
		if err != nil {
			return fmt.Errorf("failed to add member to %s: %w", set, err)
		}
		added = n > 0
		return nil
	})
	return added, err
}

// RemoveMember 从集合移除成员，返回是否存在过
func (s *Store) RemoveMember(ctx context.Context, set, member string) (bool, error) {
	var removed bool
	err := s.do(ctx, "remove_member", func(conn *redis.Conn) error {
		n, err := conn.SRem(ctx, set, member).Result()
		if err != nil {
			return fmt.Errorf("failed to remove member from %s: %w", set, err)
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

// IsMember 直接的集合成员判断（SISMEMBER），不遍历集合
func (s *Store) IsMember(ctx context.Context, set, member string) (bool, error) {
	var ok bool
	err := s.do(ctx, "is_member", func(conn *redis.Conn) error {
		var err error
		ok, err = isMember(ctx, conn, set, member)
		return err
	})
	return ok, err
}

// Members 集合全部成员（排序后返回，便于比较和展示）
func (s *Store) Members(ctx context.Context, set string) ([]string, error) {
	var members []string
	err := s.do(ctx, "members", func(conn *redis.Conn) error {
		var err error
		members, err = conn.SMembers(ctx, set).Result()
		if err != nil {
			return fmt.Errorf("failed to list members of %s: %w", set, err)
		}
		return nil
	})
	sort.Strings(members)
	return members, err
}

// UserIDs 租户下全部用户 id
func (s *Store) UserIDs(ctx context.Context, tenantID string) ([]string, error) {
	return s.Members(ctx, keys.Members(tenantID, keys.User))
}

// AssetIDs 租户下某类资源的全部 id
func (s *Store) AssetIDs(ctx context.Context, kind keys.Kind, tenantID string) ([]string, error) {
	if !kind.Evictable() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	return s.Members(ctx, keys.Members(tenantID, kind))
}

// MediaIDs 租户下音频、视频、图片 id 的并集
func (s *Store) MediaIDs(ctx context.Context, tenantID string) ([]string, error) {
	var ids []string
	err := s.do(ctx, "media_ids", func(conn *redis.Conn) error {
		var err error
		ids, err = conn.SUnion(ctx,
			keys.Members(tenantID, keys.Audio),
			keys.Members(tenantID, keys.Image),
			keys.Members(tenantID, keys.Video),
		).Result()
		if err != nil {
			return fmt.Errorf("failed to list media ids: %w", err)
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

// ActiveAppIDs 所有未软删除的应用 id
func (s *Store) ActiveAppIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.do(ctx, "active_app_ids", func(conn *redis.Conn) error {
		var err error
		ids, err = conn.SDiff(ctx, keys.AllApps(), keys.InactiveApps()).Result()
		if err != nil {
			return fmt.Errorf("failed to list active apps: %w", err)
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func isMember(ctx context.Context, conn *redis.Conn, set, member string) (bool, error) {
	ok, err := conn.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check membership in %s: %w", set, err)
	}
	return ok, nil
}
