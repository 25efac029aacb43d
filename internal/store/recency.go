package store

import (
	"context"
	"fmt"

	"baas-cache/internal/keys"

	"github.com/go-redis/redis/v8"
)

// Entry 时间索引条目
type Entry struct {
	Member string
	Score  int64
}

// Oldest 某类型时间索引中分数最小的条目；索引为空时 ok=false
func (s *Store) Oldest(ctx context.Context, kind keys.Kind) (Entry, bool, error) {
	var (
		entry Entry
		ok    bool
	)
	err := s.do(ctx, "oldest", func(conn *redis.Conn) error {
		zs, err := conn.ZRangeWithScores(ctx, keys.Recency(kind), 0, 0).Result()
		if err != nil {
			return fmt.Errorf("failed to read oldest %s: %w", kind, err)
		}
		if len(zs) == 0 {
			return nil
		}
		entry, ok = toEntry(zs[0]), true
		return nil
	})
	return entry, ok, err
}

// RecencyEntries 某类型时间索引的全部条目，按分数升序
func (s *Store) RecencyEntries(ctx context.Context, kind keys.Kind) ([]Entry, error) {
	var entries []Entry
	err := s.do(ctx, "recency_entries", func(conn *redis.Conn) error {
		zs, err := conn.ZRangeWithScores(ctx, keys.Recency(kind), 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to read %s recency: %w", kind, err)
		}
		entries = make([]Entry, 0, len(zs))
		for _, z := range zs {
			entries = append(entries, toEntry(z))
		}
		return nil
	})
	return entries, err
}

// RecencyScore 单个成员的分数；不存在时 ok=false
func (s *Store) RecencyScore(ctx context.Context, kind keys.Kind, member string) (int64, bool, error) {
	var (
		score int64
		ok    bool
	)
	err := s.do(ctx, "recency_score", func(conn *redis.Conn) error {
		v, err := conn.ZScore(ctx, keys.Recency(kind), member).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s score: %w", kind, err)
		}
		score, ok = int64(v), true
		return nil
	})
	return score, ok, err
}

// CachedElements 所有可淘汰类型时间索引中的成员（按类型分组）
func (s *Store) CachedElements(ctx context.Context) (map[keys.Kind][]string, error) {
	out := make(map[keys.Kind][]string, len(keys.EvictableKinds))
	err := s.do(ctx, "cached_elements", func(conn *redis.Conn) error {
		for _, kind := range keys.EvictableKinds {
			members, err := conn.ZRange(ctx, keys.Recency(kind), 0, -1).Result()
			if err != nil {
				return fmt.Errorf("failed to read %s recency: %w", kind, err)
			}
			out[kind] = members
		}
		return nil
	})
	return out, err
}

// Touch 把成员的分数设为当前时间
func (s *Store) Touch(ctx context.Context, kind keys.Kind, member string) error {
	return s.do(ctx, "touch", func(conn *redis.Conn) error {
		if err := conn.ZAdd(ctx, keys.Recency(kind), &redis.Z{Score: float64(s.score()), Member: member}).Err(); err != nil {
			return fmt.Errorf("failed to touch %s: %w", kind, err)
		}
		return nil
	})
}

// RemoveRecency 从时间索引移除成员，返回是否存在过
func (s *Store) RemoveRecency(ctx context.Context, kind keys.Kind, member string) (bool, error) {
	var removed bool
	err := s.do(ctx, "remove_recency", func(conn *redis.Conn) error {
		n, err := conn.ZRem(ctx, keys.Recency(kind), member).Result()
		if err != nil {
			return fmt.Errorf("failed to remove %s recency: %w", kind, err)
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

func toEntry(z redis.Z) Entry {
	member, _ := z.Member.(string)
	return Entry{Member: member, Score: int64(z.Score)}
}
