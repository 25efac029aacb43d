package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"baas-cache/internal/keys"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CreateUser 创建用户
// id 已存在（任意租户）返回 false；租户内邮箱或用户名已被占用返回 ErrEmailInUse / ErrUserNameInUse。
// 检查与占用在同一脚本内完成，不存在并发窗口
func (s *Store) CreateUser(ctx context.Context, u User) (bool, error) {
	if err := keys.Validate(u.ID); err != nil {
		return false, err
	}
	if err := keys.Validate(u.TenantID); err != nil {
		return false, err
	}
	u.Email = normalize(u.Email)
	u.UserName = strings.TrimSpace(u.UserName)
	u.Alive = true
	now := s.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.LastActive.IsZero() {
		u.LastActive = now
	}

	var res int64
	err := s.do(ctx, "create_user", func(conn *redis.Conn) error {
		args := append([]interface{}{
			u.ID, keys.Member(u.TenantID, u.ID), s.score(), u.Email, normalize(u.UserName),
		}, u.fields()...)
		var err error
		res, err = runScript(ctx, conn, createUserScript,
			[]string{
				keys.Record(keys.User, u.ID),
				keys.Members(u.TenantID, keys.User),
				keys.Recency(keys.User),
				keys.Emails(u.TenantID),
				keys.UserNames(u.TenantID),
			},
			args...)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	switch res {
	case 1:
		s.logger.Debug("User created", zap.String("tenant_id", u.TenantID), zap.String("user_id", u.ID))
		return true, nil
	case -1:
		return false, ErrEmailInUse
	case -2:
		return false, ErrUserNameInUse
	}
	return false, nil
}

// UserExists 只查询租户成员集合
func (s *Store) UserExists(ctx context.Context, tenantID, userID string) (bool, error) {
	return s.IsMember(ctx, keys.Members(tenantID, keys.User), userID)
}

// EmailInUse 租户内邮箱是否已被占用
func (s *Store) EmailInUse(ctx context.Context, tenantID, email string) (bool, error) {
	return s.IsMember(ctx, keys.Emails(tenantID), normalize(email))
}

// GetUser 先确认用户属于该租户，再读取记录；
// 记录存在但不在租户成员集合中视为不存在
func (s *Store) GetUser(ctx context.Context, tenantID, userID string) (*User, error) {
	var user *User
	err := s.do(ctx, "get_user", func(conn *redis.Conn) error {
		m, err := s.readScoped(ctx, conn, keys.User, tenantID, userID)
		if err != nil {
			return err
		}
		user = decodeUser(tenantID, userID, m)
		return nil
	})
	return user, err
}

// UserIDByName 按用户名（不区分大小写）查找用户 id
func (s *Store) UserIDByName(ctx context.Context, tenantID, userName string) (string, error) {
	var id string
	err := s.do(ctx, "user_id_by_name", func(conn *redis.Conn) error {
		v, err := conn.HGet(ctx, keys.UserNames(tenantID), normalize(userName)).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up user name: %w", err)
		}
		ok, err := isMember(ctx, conn, keys.Members(tenantID, keys.User), v)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		id = v
		return nil
	})
	return id, err
}

// EmailByName 按用户名查邮箱
func (s *Store) EmailByName(ctx context.Context, tenantID, userName string) (string, error) {
	id, err := s.UserIDByName(ctx, tenantID, userName)
	if err != nil {
		return "", err
	}
	return s.EmailByID(ctx, tenantID, id)
}

// EmailByID 按用户 id 查邮箱
func (s *Store) EmailByID(ctx context.Context, tenantID, userID string) (string, error) {
	u, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// UserNameByID 按用户 id 查用户名
func (s *Store) UserNameByID(ctx context.Context, tenantID, userID string) (string, error) {
	u, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return "", err
	}
	return u.UserName, nil
}

// UpdateUser 同时更新邮箱和密码（salt+hash），刷新时间索引
func (s *Store) UpdateUser(ctx context.Context, tenantID, userID, email string, salt, hash []byte) (bool, error) {
	return s.updateUserEmail(ctx, "update_user", tenantID, userID, email,
		fieldSalt, string(salt), fieldHash, string(hash))
}

// UpdateUserEmail 更换邮箱；新邮箱已被占用返回 ErrEmailInUse
func (s *Store) UpdateUserEmail(ctx context.Context, tenantID, userID, email string) (bool, error) {
	return s.updateUserEmail(ctx, "update_user_email", tenantID, userID, email)
}

// UpdateUserPassword 只更新 salt+hash
func (s *Store) UpdateUserPassword(ctx context.Context, tenantID, userID string, salt, hash []byte) (bool, error) {
	return s.updateScoped(ctx, "update_user_password", keys.User, tenantID, userID, true,
		fieldSalt, string(salt), fieldHash, string(hash))
}

// TouchUser 记录最近活跃时间和位置；属于访问而非修改，不刷新时间索引
func (s *Store) TouchUser(ctx context.Context, tenantID, userID, location string, at time.Time) (bool, error) {
	return s.updateScoped(ctx, "touch_user", keys.User, tenantID, userID, false,
		fieldLastActive, formatTime(at), fieldLocation, location)
}

// ConfirmUserEmail 标记邮箱已确认
func (s *Store) ConfirmUserEmail(ctx context.Context, tenantID, userID string) (bool, error) {
	return s.updateScoped(ctx, "confirm_user_email", keys.User, tenantID, userID, false,
		fieldEmailConfirmed, strconv.FormatBool(true))
}

// UserEmailConfirmed 邮箱是否已确认
func (s *Store) UserEmailConfirmed(ctx context.Context, tenantID, userID string) (bool, error) {
	u, err := s.GetUser(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	return u.EmailConfirmed, nil
}

// DeleteUser 逻辑删除：alive=false 并加入失效集合，移出成员集合和时间索引，
// 释放邮箱与用户名；记录本身保留
func (s *Store) DeleteUser(ctx context.Context, tenantID, userID string) (bool, error) {
	var deleted bool
	err := s.do(ctx, "delete_user", func(conn *redis.Conn) error {
		res, err := runScript(ctx, conn, deleteUserScript,
			[]string{
				keys.Record(keys.User, userID),
				keys.Members(tenantID, keys.User),
				keys.Recency(keys.User),
				keys.InactiveUsers(tenantID),
				keys.Emails(tenantID),
				keys.UserNames(tenantID),
			},
			userID, keys.Member(tenantID, userID))
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		deleted = res == 1
		return nil
	})
	if deleted {
		s.logger.Debug("User deactivated", zap.String("tenant_id", tenantID), zap.String("user_id", userID))
	}
	return deleted, err
}

func (s *Store) updateUserEmail(ctx context.Context, op, tenantID, userID, email string, pairs ...interface{}) (bool, error) {
	var res int64
	err := s.do(ctx, op, func(conn *redis.Conn) error {
		args := append([]interface{}{userID, keys.Member(tenantID, userID), s.score(), normalize(email)}, pairs...)
		var err error
		res, err = runScript(ctx, conn, updateUserEmailScript,
			[]string{
				keys.Record(keys.User, userID),
				keys.Members(tenantID, keys.User),
				keys.Emails(tenantID),
				keys.Recency(keys.User),
			},
			args...)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if res == -1 {
		return false, ErrEmailInUse
	}
	return res == 1, nil
}
