// Package service 面向上层门面的缓存服务：在记录存储之上组合载荷删除和密码校验。
package service

import (
	"context"
	"errors"
	"fmt"

	"baas-cache/internal/auth"
	"baas-cache/internal/filestore"
	"baas-cache/internal/keys"
	"baas-cache/internal/store"

	"go.uber.org/zap"
)

var (
	// ErrAppNotFound 租户不存在或已失效
	ErrAppNotFound = errors.New("app not found")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service 缓存服务；依赖全部显式注入
type Service struct {
	store  *store.Store
	files  filestore.Store
	hasher auth.Hasher
	logger *zap.Logger
}

// New 创建缓存服务
func New(st *store.Store, files filestore.Store, hasher auth.Hasher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		files:  files,
		hasher: hasher,
		logger: logger,
	}
}

// Store 底层记录存储
func (s *Service) Store() *store.Store {
	return s.store
}

// ---- 应用 ----

// CreateApp 创建应用
func (s *Service) CreateApp(ctx context.Context, appID, name string, confirmUsersEmail bool) (bool, error) {
	return s.store.CreateApp(ctx, store.App{ID: appID, Name: name, ConfirmUsersEmail: confirmUsersEmail})
}

// App 读取应用
func (s *Service) App(ctx context.Context, appID string) (*store.App, error) {
	return s.store.GetApp(ctx, appID)
}

// AppExists 应用是否存在（包括已失效的）
func (s *Service) AppExists(ctx context.Context, appID string) (bool, error) {
	return s.store.AppExists(ctx, appID)
}

// UpdateApp 更新应用名称和邮箱确认选项
func (s *Service) UpdateApp(ctx context.Context, appID, name string, confirmUsersEmail bool) (bool, error) {
	return s.store.UpdateApp(ctx, appID, name, confirmUsersEmail)
}

// DeleteApp 软删除应用
func (s *Service) DeleteApp(ctx context.Context, appID string) (bool, error) {
	return s.store.DeleteApp(ctx, appID)
}

// ReviveApp 恢复应用
func (s *Service) ReviveApp(ctx context.Context, appID string) (bool, error) {
	return s.store.ReviveApp(ctx, appID)
}

// AppIDs 所有有效应用
func (s *Service) AppIDs(ctx context.Context) ([]string, error) {
	return s.store.ActiveAppIDs(ctx)
}

// ---- 用户 ----

// CreateUser 在有效应用下创建用户，密码加盐哈希后保存
func (s *Service) CreateUser(ctx context.Context, appID, userID, userName, email, password string) (bool, error) {
	return s.CreateUserWithFlag(ctx, appID, userID, userName, email, password, "")
}

// CreateUserWithFlag 同 CreateUser，并写入调用方的 flag。
// 应用未开启邮箱确认时，新用户直接视为已确认
func (s *Service) CreateUserWithFlag(ctx context.Context, appID, userID, userName, email, password, flag string) (bool, error) {
	app, err := s.requireActiveApp(ctx, appID)
	if err != nil {
		return false, err
	}
	salt, err := s.hasher.NewSalt()
	if err != nil {
		return false, err
	}
	return s.store.CreateUser(ctx, store.User{
		ID:             userID,
		TenantID:       appID,
		UserName:       userName,
		Email:          email,
		Salt:           salt,
		Hash:           s.hasher.Hash(password, salt),
		Flag:           flag,
		EmailConfirmed: !app.ConfirmUsersEmail,
	})
}

// ConfirmUserEmail 用户完成邮箱确认
func (s *Service) ConfirmUserEmail(ctx context.Context, appID, userID string) (bool, error) {
	return s.store.ConfirmUserEmail(ctx, appID, userID)
}

// User 读取用户
func (s *Service) User(ctx context.Context, appID, userID string) (*store.User, error) {
	return s.store.GetUser(ctx, appID, userID)
}

// UserExists 用户是否属于该应用
func (s *Service) UserExists(ctx context.Context, appID, userID string) (bool, error) {
	return s.store.UserExists(ctx, appID, userID)
}

// UpdateUserEmail 更换邮箱
func (s *Service) UpdateUserEmail(ctx context.Context, appID, userID, email string) (bool, error) {
	return s.store.UpdateUserEmail(ctx, appID, userID, email)
}

// ChangePassword 换新盐重新哈希
func (s *Service) ChangePassword(ctx context.Context, appID, userID, password string) (bool, error) {
	salt, err := s.hasher.NewSalt()
	if err != nil {
		return false, err
	}
	return s.store.UpdateUserPassword(ctx, appID, userID, salt, s.hasher.Hash(password, salt))
}

// DeleteUser 逻辑删除用户
func (s *Service) DeleteUser(ctx context.Context, appID, userID string) (bool, error) {
	return s.store.DeleteUser(ctx, appID, userID)
}

// UserIDs 应用下所有用户
func (s *Service) UserIDs(ctx context.Context, appID string) ([]string, error) {
	return s.store.UserIDs(ctx, appID)
}

// Authenticate 按用户名和密码校验用户；用户不存在与密码错误返回同一个错误
func (s *Service) Authenticate(ctx context.Context, appID, userName, password string) (*store.User, error) {
	id, err := s.store.UserIDByName(ctx, appID, userName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, appID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Verify(password, u.Salt, u.Hash); err != nil {
		s.logger.Debug("Authentication failed", zap.String("app_id", appID), zap.String("user_id", id))
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ---- 媒体与存储对象 ----

// CreateMedia 创建音频、视频或图片
func (s *Service) CreateMedia(ctx context.Context, a store.Asset) (bool, error) {
	if a.Kind == keys.Storage {
		return false, fmt.Errorf("%w: %s is not media", store.ErrInvalidKind, a.Kind)
	}
	return s.createAsset(ctx, a)
}

// CreateBlob 创建存储对象
func (s *Service) CreateBlob(ctx context.Context, a store.Asset) (bool, error) {
	a.Kind = keys.Storage
	return s.createAsset(ctx, a)
}

func (s *Service) createAsset(ctx context.Context, a store.Asset) (bool, error) {
	if _, err := s.requireActiveApp(ctx, a.TenantID); err != nil {
		return false, err
	}
	return s.store.CreateAsset(ctx, a)
}

// Asset 读取资源
func (s *Service) Asset(ctx context.Context, kind keys.Kind, appID, id string) (*store.Asset, error) {
	return s.store.GetAsset(ctx, kind, appID, id)
}

// AssetExists 资源是否属于该应用
func (s *Service) AssetExists(ctx context.Context, kind keys.Kind, appID, id string) (bool, error) {
	return s.store.AssetExists(ctx, kind, appID, id)
}

// UpdateAsset 覆盖资源字段
func (s *Service) UpdateAsset(ctx context.Context, a store.Asset) (bool, error) {
	return s.store.UpdateAsset(ctx, a)
}

// DeleteAsset 先删除 dir 下的载荷，再删除记录；载荷删除失败时记录保留
func (s *Service) DeleteAsset(ctx context.Context, kind keys.Kind, appID, id string) (bool, error) {
	a, err := s.store.GetAsset(ctx, kind, appID, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if a.Dir != "" {
		if err := s.files.Delete(ctx, a.Dir); err != nil {
			return false, fmt.Errorf("failed to delete payload: %w", err)
		}
	}
	return s.store.DeleteAsset(ctx, kind, appID, id)
}

// AssetIDs 应用下某类资源
func (s *Service) AssetIDs(ctx context.Context, kind keys.Kind, appID string) ([]string, error) {
	return s.store.AssetIDs(ctx, kind, appID)
}

// MediaIDs 应用下所有媒体
func (s *Service) MediaIDs(ctx context.Context, appID string) ([]string, error) {
	return s.store.MediaIDs(ctx, appID)
}

func (s *Service) requireActiveApp(ctx context.Context, appID string) (*store.App, error) {
	app, err := s.store.GetApp(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAppNotFound
	}
	if err != nil {
		return nil, err
	}
	if !app.Alive {
		return nil, ErrAppNotFound
	}
	return app, nil
}
