package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"baas-cache/internal/keys"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Policy 淘汰策略：如何在四类最旧条目之间取舍
type Policy string

const (
	// PolicyBalanced 取四类最旧条目中分数最大者（各类型轮流让出最旧条目）
	PolicyBalanced Policy = "balanced"
	// PolicyOldest 取全局最旧条目
	PolicyOldest Policy = "oldest"
)

// ParsePolicy 解析策略名，空串为默认 balanced
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyBalanced:
		return PolicyBalanced, nil
	case PolicyOldest:
		return PolicyOldest, nil
	}
	return "", fmt.Errorf("unknown eviction policy %q", s)
}

// Candidate 某类型的最旧条目
type Candidate struct {
	Kind  keys.Kind
	Entry Entry
}

// Victim 被选中的淘汰对象
// Asset 为 nil 表示时间索引条目已没有对应记录（悬空条目）
type Victim struct {
	Kind     keys.Kind
	Member   string
	TenantID string
	ID       string
	Score    int64
	Asset    *Asset
}

// pickVictim 按策略选出一个候选；候选必须按 EvictableKinds 顺序给出，
// 分数相同时保留先出现者，即 Audio > Storage > Image > Video
func pickVictim(policy Policy, cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		switch policy {
		case PolicyOldest:
			if c.Entry.Score < best.Entry.Score {
				best = c
			}
		default:
			if c.Entry.Score > best.Entry.Score {
				best = c
			}
		}
	}
	return best, true
}

// SelectVictim 读取四个可淘汰类型的最旧条目并按策略选择一个；
// 全部为空返回 ErrNoEvictableContent。只读，不修改任何索引
func (s *Store) SelectVictim(ctx context.Context) (*Victim, error) {
	var victim *Victim
	err := s.do(ctx, "select_victim", func(conn *redis.Conn) error {
		var err error
		victim, err = s.selectVictim(ctx, conn)
		return err
	})
	return victim, err
}

// EvictOldest 选出淘汰对象并只移除其时间索引条目
func (s *Store) EvictOldest(ctx context.Context) (*Victim, error) {
	var victim *Victim
	err := s.do(ctx, "evict_oldest", func(conn *redis.Conn) error {
		var err error
		victim, err = s.selectVictim(ctx, conn)
		if err != nil {
			return err
		}
		if err := conn.ZRem(ctx, keys.Recency(victim.Kind), victim.Member).Err(); err != nil {
			return fmt.Errorf("failed to drop %s recency: %w", victim.Kind, err)
		}
		return nil
	})
	return victim, err
}

func (s *Store) selectVictim(ctx context.Context, conn *redis.Conn) (*Victim, error) {
	cmds := make([]*redis.ZSliceCmd, len(keys.EvictableKinds))
	_, err := conn.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, kind := range keys.EvictableKinds {
			cmds[i] = pipe.ZRangeWithScores(ctx, keys.Recency(kind), 0, 0)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read oldest entries: %w", err)
	}

	cands := make([]Candidate, 0, len(cmds))
	for i, cmd := range cmds {
		zs := cmd.Val()
		if len(zs) == 0 {
			continue
		}
		cands = append(cands, Candidate{Kind: keys.EvictableKinds[i], Entry: toEntry(zs[0])})
	}
	best, ok := pickVictim(s.policy, cands)
	if !ok {
		return nil, ErrNoEvictableContent
	}

	v := &Victim{Kind: best.Kind, Member: best.Entry.Member, Score: best.Entry.Score}
	tenantID, id, err := keys.ParseMember(best.Entry.Member)
	if err != nil {
		s.logger.Warn("Malformed recency member", zap.String("kind", string(best.Kind)), zap.Error(err))
		return v, nil
	}
	v.TenantID, v.ID = tenantID, id

	m, err := s.readScoped(ctx, conn, best.Kind, tenantID, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("Recency entry without record",
			zap.String("kind", string(best.Kind)),
			zap.String("member", best.Entry.Member))
		return v, nil
	}
	if err != nil {
		return nil, err
	}
	v.Asset = decodeAsset(best.Kind, tenantID, id, m)
	return v, nil
}
