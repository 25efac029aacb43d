package store

import (
	"strconv"
	"strings"
	"time"

	"baas-cache/internal/keys"
)

// 记录哈希的字段名；与既有数据保持一致，不要改名
const (
	fieldAppID             = "appId"
	fieldAppName           = "appName"
	fieldCreationDate      = "creationDate"
	fieldAlive             = "alive"
	fieldConfirmUsersEmail = "confirmUsersEmail"

	fieldUserID         = "userId"
	fieldUserName       = "userName"
	fieldUserNameKey    = "userNameKey"
	fieldEmail          = "email"
	fieldSalt           = "salt"
	fieldHash           = "hash"
	fieldLastActive     = "lastActive"
	fieldLocation       = "location"
	fieldFlag           = "flag"
	fieldEmailConfirmed = "emailConfirmed"

	fieldID       = "id"
	fieldDir      = "dir"
	fieldType     = "type"
	fieldSize     = "size"
	fieldFileName = "fileName"
)

// App 应用（租户根）
type App struct {
	ID                string
	Name              string
	CreatedAt         time.Time
	Alive             bool
	ConfirmUsersEmail bool
}

// User 用户；ID 在整个存储内唯一，邮箱和用户名在租户内唯一
type User struct {
	ID             string
	TenantID       string
	UserName       string
	Email          string
	Salt           []byte
	Hash           []byte
	CreatedAt      time.Time
	LastActive     time.Time
	Location       string
	Alive          bool
	Flag           string
	EmailConfirmed bool
}

// Asset 媒体（audio/video/image）或存储对象（storage）
// Quality 为类型特有属性：码率、分辨率或像素尺寸；storage 为空
type Asset struct {
	ID        string
	TenantID  string
	Kind      keys.Kind
	Dir       string
	Extension string
	Size      int64
	Quality   string
	CreatedAt time.Time
	FileName  string
	Location  *string
}

func (a *App) fields() []interface{} {
	f := []interface{}{
		fieldAppID, a.ID,
		fieldAppName, a.Name,
		fieldAlive, strconv.FormatBool(a.Alive),
		fieldConfirmUsersEmail, strconv.FormatBool(a.ConfirmUsersEmail),
	}
	if !a.CreatedAt.IsZero() {
		f = append(f, fieldCreationDate, formatTime(a.CreatedAt))
	}
	return f
}

func decodeApp(id string, m map[string]string) *App {
	return &App{
		ID:                id,
		Name:              m[fieldAppName],
		CreatedAt:         parseTime(m[fieldCreationDate]),
		Alive:             parseBool(m[fieldAlive]),
		ConfirmUsersEmail: parseBool(m[fieldConfirmUsersEmail]),
	}
}

func (u *User) fields() []interface{} {
	f := []interface{}{
		fieldUserID, u.ID,
		fieldAppID, u.TenantID,
		fieldUserName, u.UserName,
		fieldUserNameKey, normalize(u.UserName),
		fieldEmail, u.Email,
		fieldSalt, string(u.Salt),
		fieldHash, string(u.Hash),
		fieldAlive, strconv.FormatBool(u.Alive),
		fieldEmailConfirmed, strconv.FormatBool(u.EmailConfirmed),
	}
	if !u.CreatedAt.IsZero() {
		f = append(f, fieldCreationDate, formatTime(u.CreatedAt))
	}
	if !u.LastActive.IsZero() {
		f = append(f, fieldLastActive, formatTime(u.LastActive))
	}
	if u.Location != "" {
		f = append(f, fieldLocation, u.Location)
	}
	if u.Flag != "" {
		f = append(f, fieldFlag, u.Flag)
	}
	return f
}

func decodeUser(tenantID, id string, m map[string]string) *User {
	u := &User{
		ID:             id,
		TenantID:       tenantID,
		UserName:       m[fieldUserName],
		Email:          m[fieldEmail],
		CreatedAt:      parseTime(m[fieldCreationDate]),
		LastActive:     parseTime(m[fieldLastActive]),
		Location:       m[fieldLocation],
		Alive:          parseBool(m[fieldAlive]),
		Flag:           m[fieldFlag],
		EmailConfirmed: parseBool(m[fieldEmailConfirmed]),
	}
	if v, ok := m[fieldSalt]; ok {
		u.Salt = []byte(v)
	}
	if v, ok := m[fieldHash]; ok {
		u.Hash = []byte(v)
	}
	return u
}

func (a *Asset) fields() []interface{} {
	f := []interface{}{
		fieldID, a.ID,
		fieldAppID, a.TenantID,
		fieldDir, a.Dir,
		fieldType, a.Extension,
		fieldSize, strconv.FormatInt(a.Size, 10),
		fieldFileName, a.FileName,
	}
	if q := a.Kind.QualityField(); q != "" {
		f = append(f, q, a.Quality)
	}
	if !a.CreatedAt.IsZero() {
		f = append(f, fieldCreationDate, formatTime(a.CreatedAt))
	}
	if a.Location != nil {
		f = append(f, fieldLocation, *a.Location)
	}
	return f
}

func decodeAsset(kind keys.Kind, tenantID, id string, m map[string]string) *Asset {
	a := &Asset{
		ID:        id,
		TenantID:  tenantID,
		Kind:      kind,
		Dir:       m[fieldDir],
		Extension: m[fieldType],
		FileName:  m[fieldFileName],
		CreatedAt: parseTime(m[fieldCreationDate]),
	}
	if q := kind.QualityField(); q != "" {
		a.Quality = m[q]
	}
	if n, err := strconv.ParseInt(m[fieldSize], 10, 64); err == nil {
		a.Size = n
	}
	if loc, ok := m[fieldLocation]; ok {
		a.Location = &loc
	}
	return a
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime 容忍空值和旧格式：无法解析时返回零值
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// normalize 邮箱、用户名的唯一性比较不区分大小写
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
