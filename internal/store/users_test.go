package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"baas-cache/internal/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(tenant, id, name, email string) User {
	return User{
		ID:       id,
		TenantID: tenant,
		UserName: name,
		Email:    email,
		Salt:     []byte{0x01, 0xff, 0x00, 0x7f},
		Hash:     []byte("hash-" + id),
	}
}

func TestStore_CreateUser_RoundTrip(t *testing.T) {
	_, s, _ := setupTestStore(t)
	ctx := context.Background()

	u := newUser("t1", "u1", "Alice", "Alice@Example.com")
	u.Location = "41.15,-8.61"
	u.Flag = "beta"
	created, err := s.CreateUser(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := s.UserExists(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.GetUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "t1", got.TenantID)
	assert.Equal(t, "Alice", got.UserName)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, u.Salt, got.Salt)
	assert.Equal(t, u.Hash, got.Hash)
	assert.Equal(t, "41.15,-8.61", got.Location)
	assert.Equal(t, "beta", got.Flag)
	assert.True(t, got.Alive)
	assert.False(t, got.EmailConfirmed)
	assert.Equal(t, time.Unix(1000, 0).UTC(), got.CreatedAt)
	assert.Equal(t, time.Unix(1000, 0).UTC(), got.LastActive)

	v, ok := score(t, s, keys.User, "t1:u1")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), v)
}

func TestStore_CreateUser_DuplicateIDKeepsFields(t *testing.T) {
	_, s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "alice", "a@x.io"))
	require.NoError(t, err)

	// id 全局唯一，即使在另一个租户下
	created, err := s.CreateUser(ctx, newUser("t2", "u1", "mallory", "m@x.io"))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)

	exists, err := s.UserExists(ctx, "t2", "u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_CreateUser_EmailUniquePerTenant(t *testing.T) {
	_, s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "alice", "a@x.io"))
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, newUser("t1", "u2", "bob", "A@X.io"))
	assert.True(t, errors.Is(err, ErrEmailInUse))

	exists, err := s.UserExists(ctx, "t1", "u2")
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := s.CreateUser(ctx, newUser("t2", "u2", "bob", "a@x.io"))
	require.NoError(t, err)
	assert.True(t, created)

	inUse, err := s.EmailInUse(ctx, "t1", "a@x.io")
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestStore_CreateUser_UserNameUniquePerTenant(t *testing.T) {
	_, s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "Alice", "a@x.io"))
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, newUser("t1", "u2", "alice", "b@x.io"))
	assert.True(t, errors.Is(err, ErrUserNameInUse))

	id, err := s.UserIDByName(ctx, "t1", "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	email, err := s.EmailByName(ctx, "t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", email)

	name, err := s.UserNameByID(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	_, err = s.UserIDByName(ctx, "t2", "alice")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_User_TenantIsolation(t *testing.T) {
	_, s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "alice", "a@x.io"))
	require.NoError(t, err)

	_, err = s.GetUser(ctx, "t2", "u1")
	assert.True(t, errors.Is(err, ErrNotFound))

	updated, err := s.UpdateUserPassword(ctx, "t2", "u1", []byte("s"), []byte("h"))
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = s.UpdateUserEmail(ctx, "t2", "u1", "evil@x.io")
	require.NoError(t, err)
	assert.False(t, updated)

	deleted, err := s.DeleteUser(ctx, "t2", "u1")
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := s.GetUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", got.Email)
	assert.Equal(t, []byte("hash-u1"), got.Hash)
}

func TestStore_UpdateUserEmail(t *testing.T) {
	_, s, clock := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "alice", "a@x.io"))
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, newUser("t1", "u2", "bob", "b@x.io"))
	require.NoError(t, err)

	_, err = s.UpdateUserEmail(ctx, "t1", "u1", "B@x.io")
	assert.True(t, errors.Is(err, ErrEmailInUse))

	clock.Set(2000)
	updated, err := s.UpdateUserEmail(ctx, "t1", "u1", "new@x.io")
	require.NoError(t, err)
	assert.True(t, updated)

	email, err := s.EmailByID(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@x.io", email)

	inUse, err := s.EmailInUse(ctx, "t1", "a@x.io")
	require.NoError(t, err)
	assert.False(t, inUse)

	v, _ := score(t, s, keys.User, "t1:u1")
	assert.Equal(t, int64(2000), v)

	// 同一邮箱再次写入不算冲突
	updated, err = s.UpdateUser(ctx, "t1", "u1", "new@x.io", []byte("s2"), []byte("h2"))
	require.NoError(t, err)
	assert.True(t, updated)

	got, err := s.GetUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("s2"), got.Salt)
	assert.Equal(t, []byte("h2"), got.Hash)
}

func TestStore_TouchUser_KeepsRecency(t *testing.T) {
	_, s, clock := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "alice", "a@x.io"))
	require.NoError(t, err)

	clock.Set(5000)
	at := time.Unix(4000, 0)
	touched, err := s.TouchUser(ctx, "t1", "u1", "38.72,-9.14", at)
	require.NoError(t, err)
	assert.True(t, touched)

	confirmed, err := s.ConfirmUserEmail(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.True(t, confirmed)

	got, err := s.GetUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, at.UTC(), got.LastActive)
	assert.Equal(t, "38.72,-9.14", got.Location)

	ok, err := s.UserEmailConfirmed(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	v, _ := score(t, s, keys.User, "t1:u1")
	assert.Equal(t, int64(1000), v)
}

func TestStore_DeleteUser_IsLogical(t *testing.T) {
	mr, s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "Alice", "a@x.io"))
	require.NoError(t, err)

	deleted, err := s.DeleteUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteUser(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.False(t, deleted)

	exists, err := s.UserExists(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.GetUser(ctx, "t1", "u1")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, ok := score(t, s, keys.User, "t1:u1")
	assert.False(t, ok)

	assert.True(t, mr.Exists(keys.Record(keys.User, "u1")))
	assert.Equal(t, "false", mr.HGet(keys.Record(keys.User, "u1"), "alive"))
	inactive, err := mr.IsMember(keys.InactiveUsers("t1"), "t1:u1")
	require.NoError(t, err)
	assert.True(t, inactive)

	inUse, err := s.EmailInUse(ctx, "t1", "a@x.io")
	require.NoError(t, err)
	assert.False(t, inUse)
	_, err = s.UserIDByName(ctx, "t1", "alice")
	assert.True(t, errors.Is(err, ErrNotFound))

	// 邮箱和用户名释放后可以被新用户使用；旧 id 仍被保留的记录占用
	created, err := s.CreateUser(ctx, newUser("t1", "u2", "alice", "a@x.io"))
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.CreateUser(ctx, newUser("t1", "u1", "carol", "c@x.io"))
	require.NoError(t, err)
	assert.False(t, created)

	ids, err := s.UserIDs(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, ids)
}

func TestStore_DeleteUser_FreesUserNameAsIndexed(t *testing.T) {
	_, s, _ := setupTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		stored   string
		reuse    string
		lookupBy string
	}{
		{name: "padded", stored: " Bob ", reuse: " Bob ", lookupBy: "bob"},
		{name: "non-ascii", stored: "Ünal", reuse: "ünal", lookupBy: "ÜNAL"},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := fmt.Sprintf("a%d", i)
			second := fmt.Sprintf("b%d", i)

			_, err := s.CreateUser(ctx, newUser("t1", first, tc.stored, first+"@x.io"))
			require.NoError(t, err)

			name, err := s.UserNameByID(ctx, "t1", first)
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tc.stored), name)

			id, err := s.UserIDByName(ctx, "t1", tc.lookupBy)
			require.NoError(t, err)
			assert.Equal(t, first, id)

			deleted, err := s.DeleteUser(ctx, "t1", first)
			require.NoError(t, err)
			require.True(t, deleted)

			created, err := s.CreateUser(ctx, newUser("t1", second, tc.reuse, second+"@x.io"))
			require.NoError(t, err)
			assert.True(t, created)

			id, err = s.UserIDByName(ctx, "t1", tc.lookupBy)
			require.NoError(t, err)
			assert.Equal(t, second, id)
		})
	}
}

func TestStore_DeleteUser_KeepsNameClaimedByAnotherUser(t *testing.T) {
	mr, s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "alice", "a@x.io"))
	require.NoError(t, err)
	// 索引项已指向别的用户时，删除 u1 不能把它清掉
	mr.HSet(keys.UserNames("t1"), "alice", "u9")

	deleted, err := s.DeleteUser(ctx, "t1", "u1")
	require.NoError(t, err)
	require.True(t, deleted)

	assert.Equal(t, "u9", mr.HGet(keys.UserNames("t1"), "alice"))
}
