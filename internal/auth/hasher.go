// Package auth 用户密码的加盐哈希。记录层只保存 salt 和 hash 字节，
// 生成与校验都在这里完成。
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrMismatch 密码不匹配
var ErrMismatch = errors.New("password mismatch")

// Hasher 密码哈希
type Hasher interface {
	NewSalt() ([]byte, error)
	Hash(password string, salt []byte) []byte
	Verify(password string, salt, hash []byte) error
}

// Params argon2id 参数
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams 默认参数
var DefaultParams = Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// Argon2Hasher argon2id 实现
type Argon2Hasher struct {
	params Params
}

// NewArgon2Hasher 创建哈希器；零值参数使用 DefaultParams
func NewArgon2Hasher(p Params) *Argon2Hasher {
	if p == (Params{}) {
		p = DefaultParams
	}
	return &Argon2Hasher{params: p}
}

// NewSalt 生成随机盐
func (h *Argon2Hasher) NewSalt() ([]byte, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Hash 计算密码哈希
func (h *Argon2Hasher) Hash(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
}

// Verify 常数时间比较
func (h *Argon2Hasher) Verify(password string, salt, hash []byte) error {
	if len(hash) == 0 {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare(h.Hash(password, salt), hash) != 1 {
		return ErrMismatch
	}
	return nil
}
