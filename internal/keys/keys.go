// Package keys 定义 Redis 键空间：记录、租户成员集合、时间索引与唯一性集合。
// 所有函数都是纯函数，键格式在系统生命周期内保持稳定。
package keys

import (
	"errors"
	"fmt"
	"strings"
)

// Separator 复合键与复合成员的分隔符，id 中不允许出现
const Separator = ":"

// ErrInvalidID id 为空、包含分隔符或与索引键后缀冲突
var ErrInvalidID = errors.New("invalid id")

// Kind 实体类型；其值同时用作记录键前缀和租户成员集合的复数名
type Kind string

const (
	App     Kind = "apps"
	User    Kind = "users"
	Audio   Kind = "audio"
	Video   Kind = "video"
	Image   Kind = "images"
	Storage Kind = "storage"
)

// EvictableKinds 参与淘汰的四类实体，顺序即分数相同时的优先级
var EvictableKinds = []Kind{Audio, Storage, Image, Video}

// AllKinds 所有实体类型
var AllKinds = []Kind{App, User, Audio, Video, Image, Storage}

// 保留后缀：与同一前缀下的索引键同名的 id 会发生冲突
var reserved = map[string]bool{
	"time":     true,
	"inactive": true,
	"all":      true,
}

// ParseKind 将字符串解析为 Kind（接受单数别名）
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "apps", "app":
		return App, nil
	case "users", "user":
		return User, nil
	case "audio":
		return Audio, nil
	case "video", "videos":
		return Video, nil
	case "images", "image":
		return Image, nil
	case "storage", "blob":
		return Storage, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

func (k Kind) String() string { return string(k) }

// Evictable 是否受容量淘汰约束（用户和应用不参与）
func (k Kind) Evictable() bool {
	switch k {
	case Audio, Video, Image, Storage:
		return true
	}
	return false
}

// QualityField 各媒体类型特有的质量属性字段名；storage 没有
func (k Kind) QualityField() string {
	switch k {
	case Audio:
		return "bitRate"
	case Video:
		return "resolution"
	case Image:
		return "pixelsSize"
	}
	return ""
}

// Validate 校验调用方提供的 id
func Validate(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.Contains(id, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, Separator)
	}
	if reserved[id] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidID, id)
	}
	return nil
}

// Record 记录哈希键 <kind>:<id>
func Record(kind Kind, id string) string {
	return string(kind) + Separator + id
}

// Members 租户成员集合 app:<tenantId>:<kindPlural>
func Members(tenantID string, kind Kind) string {
	return "app" + Separator + tenantID + Separator + string(kind)
}

// MembersPattern 匹配所有租户某类型成员集合的 SCAN 模式
func MembersPattern(kind Kind) string {
	return Members("*", kind)
}

// TenantOfMembers 从成员集合键中取出租户 id
func TenantOfMembers(key string, kind Kind) (string, bool) {
	rest, ok := strings.CutPrefix(key, "app"+Separator)
	if !ok {
		return "", false
	}
	tenantID, ok := strings.CutSuffix(rest, Separator+string(kind))
	if !ok || tenantID == "" || strings.Contains(tenantID, Separator) {
		return "", false
	}
	return tenantID, true
}

// Recency 时间索引 <kind>:time（全局，不分租户）
func Recency(kind Kind) string {
	return string(kind) + Separator + "time"
}

// Emails 租户内已使用邮箱集合
func Emails(tenantID string) string {
	return Members(tenantID, User) + Separator + "emails"
}

// UserNames 租户内用户名索引（哈希：小写用户名 -> 用户 id）
func UserNames(tenantID string) string {
	return Members(tenantID, User) + Separator + "names"
}

// InactiveUsers 租户内软删除用户集合（成员为 tenant:user）
func InactiveUsers(tenantID string) string {
	return Members(tenantID, User) + Separator + "inactive"
}

// InactiveApps 软删除应用集合
func InactiveApps() string {
	return string(App) + Separator + "inactive"
}

// AllApps 应用注册集合
func AllApps() string {
	return string(App) + Separator + "all"
}

// Member 时间索引中的复合成员 <tenantId>:<entityId>
func Member(tenantID, id string) string {
	return tenantID + Separator + id
}

// ParseMember 拆分复合成员
func ParseMember(member string) (tenantID, id string, err error) {
	tenantID, id, ok := strings.Cut(member, Separator)
	if !ok || tenantID == "" || id == "" || strings.Contains(id, Separator) {
		return "", "", fmt.Errorf("malformed recency member %q", member)
	}
	return tenantID, id, nil
}
