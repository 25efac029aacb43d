package store

import (
	"context"
	"fmt"
	"strconv"

	"baas-cache/internal/keys"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CreateApp 创建应用；id 已存在返回 false
// 应用是租户根，没有上级成员集合，注册到 apps:all
func (s *Store) CreateApp(ctx context.Context, app App) (bool, error) {
	if err := keys.Validate(app.ID); err != nil {
		return false, err
	}
	app.Alive = true
	if app.CreatedAt.IsZero() {
		app.CreatedAt = s.now()
	}

	var created bool
	err := s.do(ctx, "create_app", func(conn *redis.Conn) error {
		args := append([]interface{}{app.ID, app.ID, s.score()}, app.fields()...)
		res, err := runScript(ctx, conn, createRecordScript,
			[]string{keys.Record(keys.App, app.ID), keys.AllApps(), keys.Recency(keys.App)},
			args...)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}
		created = res == 1
		return nil
	})
	if created {
		s.logger.Debug("App created", zap.String("app_id", app.ID))
	}
	return created, err
}

// AppExists 直接探测记录键（软删除的应用仍然存在）
func (s *Store) AppExists(ctx context.Context, appID string) (bool, error) {
	var exists bool
	err := s.do(ctx, "app_exists", func(conn *redis.Conn) error {
		n, err := conn.Exists(ctx, keys.Record(keys.App, appID)).Result()
		if err != nil {
			return fmt.Errorf("failed to check app: %w", err)
		}
		exists = n == 1
		return nil
	})
	return exists, err
}

// GetApp 读取应用
func (s *Store) GetApp(ctx context.Context, appID string) (*App, error) {
	var app *App
	err := s.do(ctx, "get_app", func(conn *redis.Conn) error {
		m, err := conn.HGetAll(ctx, keys.Record(keys.App, appID)).Result()
		if err != nil {
			return fmt.Errorf("failed to get app: %w", err)
		}
		if len(m) == 0 {
			return ErrNotFound
		}
		app = decodeApp(appID, m)
		return nil
	})
	return app, err
}

// AppName 应用名
func (s *Store) AppName(ctx context.Context, appID string) (string, error) {
	app, err := s.GetApp(ctx, appID)
	if err != nil {
		return "", err
	}
	return app.Name, nil
}

// ConfirmUsersEmail 该应用的新用户是否需要确认邮箱
func (s *Store) ConfirmUsersEmail(ctx context.Context, appID string) (bool, error) {
	app, err := s.GetApp(ctx, appID)
	if err != nil {
		return false, err
	}
	return app.ConfirmUsersEmail, nil
}

// UpdateApp 更新名称与邮箱确认选项（id 不变），刷新时间索引
func (s *Store) UpdateApp(ctx context.Context, appID, name string, confirmUsersEmail bool) (bool, error) {
	return s.updateApp(ctx, "update_app", appID,
		fieldAppName, name,
		fieldConfirmUsersEmail, strconv.FormatBool(confirmUsersEmail))
}

// UpdateAppName 重命名应用（id 不变）
func (s *Store) UpdateAppName(ctx context.Context, appID, name string) (bool, error) {
	return s.updateApp(ctx, "update_app_name", appID, fieldAppName, name)
}

// SetConfirmUsersEmail 修改邮箱确认选项
func (s *Store) SetConfirmUsersEmail(ctx context.Context, appID string, confirm bool) (bool, error) {
	return s.updateApp(ctx, "set_confirm_users_email", appID,
		fieldConfirmUsersEmail, strconv.FormatBool(confirm))
}

func (s *Store) updateApp(ctx context.Context, op, appID string, pairs ...interface{}) (bool, error) {
	var updated bool
	err := s.do(ctx, op, func(conn *redis.Conn) error {
		args := append([]interface{}{appID, s.score()}, pairs...)
		res, err := runScript(ctx, conn, updateAppScript,
			[]string{keys.Record(keys.App, appID), keys.InactiveApps(), keys.Recency(keys.App)},
			args...)
		if err != nil {
			return fmt.Errorf("failed to update app: %w", err)
		}
		updated = res == 1
		return nil
	})
	return updated, err
}

// DeleteApp 软删除：alive=false，加入 apps:inactive，移出时间索引；记录保留
// 不存在或已经失效返回 false
func (s *Store) DeleteApp(ctx context.Context, appID string) (bool, error) {
	var deleted bool
	err := s.do(ctx, "delete_app", func(conn *redis.Conn) error {
		res, err := runScript(ctx, conn, deleteAppScript,
			[]string{keys.Record(keys.App, appID), keys.InactiveApps(), keys.Recency(keys.App)},
			appID)
		if err != nil {
			return fmt.Errorf("failed to delete app: %w", err)
		}
		deleted = res == 1
		return nil
	})
	if deleted {
		s.logger.Info("App deactivated", zap.String("app_id", appID))
	}
	return deleted, err
}

// ReviveApp 恢复软删除的应用
func (s *Store) ReviveApp(ctx context.Context, appID string) (bool, error) {
	var revived bool
	err := s.do(ctx, "revive_app", func(conn *redis.Conn) error {
		res, err := runScript(ctx, conn, reviveAppScript,
			[]string{keys.Record(keys.App, appID), keys.InactiveApps(), keys.Recency(keys.App)},
			appID, s.score())
		if err != nil {
			return fmt.Errorf("failed to revive app: %w", err)
		}
		revived = res == 1
		return nil
	})
	if revived {
		s.logger.Info("App revived", zap.String("app_id", appID))
	}
	return revived, err
}
