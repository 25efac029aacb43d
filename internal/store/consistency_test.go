package store

import (
	"context"
	"errors"
	"testing"

	"baas-cache/internal/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CheckAndRepair(t *testing.T) {
	mr, s, _ := setupTestStore(t)
	ctx := context.Background()

	for _, a := range []Asset{
		newAsset(keys.Audio, "t1", "ok"),
		newAsset(keys.Audio, "t1", "norecord"),
		newAsset(keys.Audio, "t2", "norecency"),
	} {
		_, err := s.CreateAsset(ctx, a)
		require.NoError(t, err)
	}
	mr.Del(keys.Record(keys.Audio, "norecord"))
	_, err := mr.ZRem(keys.Recency(keys.Audio), "t2:norecency")
	require.NoError(t, err)
	_, err = mr.ZAdd(keys.Recency(keys.Audio), 1, "t3:orphan")
	require.NoError(t, err)

	report, err := s.Check(ctx, keys.Audio)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.ElementsMatch(t, []string{"t1:norecord", "t3:orphan"}, report.DanglingRecency)
	assert.Equal(t, []Ref{{TenantID: "t1", ID: "norecord"}}, report.DanglingMembers)
	assert.Equal(t, []Ref{{TenantID: "t2", ID: "norecency"}}, report.MissingRecency)

	fixed, err := s.Repair(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, 4, fixed)

	report, err = s.Check(ctx, keys.Audio)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	exists, err := s.AssetExists(ctx, keys.Audio, "t1", "norecord")
	require.NoError(t, err)
	assert.False(t, exists)
	_, ok := score(t, s, keys.Audio, "t2:norecency")
	assert.True(t, ok)
}

func TestStore_Check_UsersIgnoresUniquenessSets(t *testing.T) {
	_, s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, newUser("t1", "u1", "alice", "a@x.io"))
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, newUser("t1", "u2", "bob", "b@x.io"))
	require.NoError(t, err)
	_, err = s.DeleteUser(ctx, "t1", "u2")
	require.NoError(t, err)

	report, err := s.Check(ctx, keys.User)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	fixed, err := s.Repair(ctx, report)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestStore_Check_RejectsApps(t *testing.T) {
	_, s, _ := setupTestStore(t)

	_, err := s.Check(context.Background(), keys.App)
	assert.True(t, errors.Is(err, ErrInvalidKind))
}

func TestStore_Repair_SkipsEntriesFixedSinceCheck(t *testing.T) {
	mr, s, clock := setupTestStore(t)
	ctx := context.Background()

	for _, a := range []Asset{
		newAsset(keys.Video, "t1", "back"),
		newAsset(keys.Video, "t1", "touched"),
	} {
		_, err := s.CreateAsset(ctx, a)
		require.NoError(t, err)
	}
	mr.Del(keys.Record(keys.Video, "back"))
	_, err := mr.ZRem(keys.Recency(keys.Video), "t1:touched")
	require.NoError(t, err)

	report, err := s.Check(ctx, keys.Video)
	require.NoError(t, err)
	assert.Equal(t, []Ref{{TenantID: "t1", ID: "back"}}, report.DanglingMembers)
	assert.Equal(t, []string{"t1:back"}, report.DanglingRecency)
	assert.Equal(t, []Ref{{TenantID: "t1", ID: "touched"}}, report.MissingRecency)

	// 检查之后记录被写回、时间索引被刷新
	mr.HSet(keys.Record(keys.Video, "back"), "dir", "/t1/video/back")
	_, err = mr.ZAdd(keys.Recency(keys.Video), 1500, "t1:touched")
	require.NoError(t, err)
	clock.Set(9000)

	fixed, err := s.Repair(ctx, report)
	require.NoError(t, err)
	assert.Zero(t, fixed)

	exists, err := s.AssetExists(ctx, keys.Video, "t1", "back")
	require.NoError(t, err)
	assert.True(t, exists)
	v, ok := score(t, s, keys.Video, "t1:back")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), v)
	v, _ = score(t, s, keys.Video, "t1:touched")
	assert.Equal(t, int64(1500), v)
}
