package store

import (
	"context"
	"fmt"
	"sort"

	"baas-cache/internal/keys"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Ref 租户内的一条记录引用
type Ref struct {
	TenantID string
	ID       string
}

// Report 某类型索引与记录之间的不一致
type Report struct {
	Kind keys.Kind
	// DanglingRecency 时间索引成员没有对应的成员集合条目或记录
	DanglingRecency []string
	// DanglingMembers 成员集合条目没有对应记录
	DanglingMembers []Ref
	// MissingRecency 记录和成员集合都在，但时间索引缺失
	MissingRecency []Ref
}

// Clean 没有发现问题
func (r *Report) Clean() bool {
	return len(r.DanglingRecency) == 0 && len(r.DanglingMembers) == 0 && len(r.MissingRecency) == 0
}

// Check 扫描某个租户级类型（users 或可淘汰类型）的索引一致性
func (s *Store) Check(ctx context.Context, kind keys.Kind) (*Report, error) {
	if kind == keys.App {
		return nil, fmt.Errorf("%w: %s has no tenant membership", ErrInvalidKind, kind)
	}
	report := &Report{Kind: kind}
	err := s.do(ctx, "check_"+string(kind), func(conn *redis.Conn) error {
		sets, err := scanMembershipSets(ctx, conn, kind)
		if err != nil {
			return err
		}
		for _, tenantID := range sets {
			ids, err := conn.SMembers(ctx, keys.Members(tenantID, kind)).Result()
			if err != nil {
				return fmt.Errorf("failed to list %s of %s: %w", kind, tenantID, err)
			}
			sort.Strings(ids)
			for _, id := range ids {
				exists, err := conn.Exists(ctx, keys.Record(kind, id)).Result()
				if err != nil {
					return fmt.Errorf("failed to check %s record: %w", kind, err)
				}
				if exists == 0 {
					report.DanglingMembers = append(report.DanglingMembers, Ref{TenantID: tenantID, ID: id})
					continue
				}
				err = conn.ZScore(ctx, keys.Recency(kind), keys.Member(tenantID, id)).Err()
				if err == redis.Nil {
					report.MissingRecency = append(report.MissingRecency, Ref{TenantID: tenantID, ID: id})
				} else if err != nil {
					return fmt.Errorf("failed to read %s score: %w", kind, err)
				}
			}
		}

		members, err := conn.ZRange(ctx, keys.Recency(kind), 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to read %s recency: %w", kind, err)
		}
		for _, member := range members {
			tenantID, id, err := keys.ParseMember(member)
			if err != nil {
				report.DanglingRecency = append(report.DanglingRecency, member)
				continue
			}
			ok, err := isMember(ctx, conn, keys.Members(tenantID, kind), id)
			if err != nil {
				return err
			}
			if ok {
				n, err := conn.Exists(ctx, keys.Record(kind, id)).Result()
				if err != nil {
					return fmt.Errorf("failed to check %s record: %w", kind, err)
				}
				ok = n == 1
			}
			if !ok {
				report.DanglingRecency = append(report.DanglingRecency, member)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Repair 按报告修复：移除悬空的时间索引与成员条目，为缺失时间索引的记录补上当前分数。
// 报告可能已经过期，每一项在脚本内重新确认后才修改；返回实际修复的条目数
func (s *Store) Repair(ctx context.Context, r *Report) (int, error) {
	if r == nil || r.Clean() {
		return 0, nil
	}
	var (
		fixed   int
		skipped int
	)
	apply := func(res int64) {
		if res == 1 {
			fixed++
		} else {
			skipped++
		}
	}
	recency := keys.Recency(r.Kind)
	err := s.do(ctx, "repair_"+string(r.Kind), func(conn *redis.Conn) error {
		for _, member := range r.DanglingRecency {
			scriptKeys := []string{recency}
			id := ""
			if tenantID, mid, err := keys.ParseMember(member); err == nil {
				id = mid
				scriptKeys = append(scriptKeys, keys.Members(tenantID, r.Kind), keys.Record(r.Kind, mid))
			}
			res, err := runScript(ctx, conn, repairDanglingRecencyScript, scriptKeys, id, member)
			if err != nil {
				return fmt.Errorf("failed to repair %s recency: %w", r.Kind, err)
			}
			apply(res)
		}
		for _, ref := range r.DanglingMembers {
			res, err := runScript(ctx, conn, repairDanglingMemberScript,
				[]string{keys.Record(r.Kind, ref.ID), keys.Members(ref.TenantID, r.Kind), recency},
				ref.ID, keys.Member(ref.TenantID, ref.ID))
			if err != nil {
				return fmt.Errorf("failed to repair %s membership: %w", r.Kind, err)
			}
			apply(res)
		}
		score := s.score()
		for _, ref := range r.MissingRecency {
			res, err := runScript(ctx, conn, repairMissingRecencyScript,
				[]string{keys.Record(r.Kind, ref.ID), keys.Members(ref.TenantID, r.Kind), recency},
				ref.ID, keys.Member(ref.TenantID, ref.ID), score)
			if err != nil {
				return fmt.Errorf("failed to restore %s recency: %w", r.Kind, err)
			}
			apply(res)
		}
		return nil
	})
	if err != nil {
		return fixed, err
	}
	s.logger.Warn("Index repaired",
		zap.String("kind", string(r.Kind)),
		zap.Int("dangling_recency", len(r.DanglingRecency)),
		zap.Int("dangling_members", len(r.DanglingMembers)),
		zap.Int("missing_recency", len(r.MissingRecency)),
		zap.Int("fixed", fixed),
		zap.Int("skipped_stale", skipped))
	return fixed, nil
}

// scanMembershipSets 找出所有存在该类型成员集合的租户 id
func scanMembershipSets(ctx context.Context, conn *redis.Conn, kind keys.Kind) ([]string, error) {
	match := keys.MembersPattern(kind)
	var (
		cursor  uint64
		tenants []string
	)
	for {
		batch, next, err := conn.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s membership sets: %w", kind, err)
		}
		for _, key := range batch {
			if tenantID, ok := keys.TenantOfMembers(key, kind); ok {
				tenants = append(tenants, tenantID)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(tenants)
	return dedupe(tenants), nil
}

func dedupe(sorted []string) []string {
	var out []string
	for _, v := range sorted {
		if len(out) == 0 || out[len(out)-1] != v {
			out = append(out, v)
		}
	}
	return out
}
