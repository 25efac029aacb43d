package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFormats(t *testing.T) {
	assert.Equal(t, "audio:a1", Record(Audio, "a1"))
	assert.Equal(t, "images:i1", Record(Image, "i1"))
	assert.Equal(t, "users:u1", Record(User, "u1"))
	assert.Equal(t, "apps:t1", Record(App, "t1"))

	assert.Equal(t, "app:t1:video", Members("t1", Video))
	assert.Equal(t, "app:t1:storage", Members("t1", Storage))
	assert.Equal(t, "storage:time", Recency(Storage))
	assert.Equal(t, "app:t1:users:emails", Emails("t1"))
	assert.Equal(t, "app:t1:users:names", UserNames("t1"))
	assert.Equal(t, "app:t1:users:inactive", InactiveUsers("t1"))
	assert.Equal(t, "apps:inactive", InactiveApps())
	assert.Equal(t, "apps:all", AllApps())
}

func TestRecordKeysDoNotCollideAcrossKinds(t *testing.T) {
	seen := map[string]Kind{}
	for _, k := range AllKinds {
		key := Record(k, "same-id")
		if other, ok := seen[key]; ok {
			t.Fatalf("kind %s collides with %s on %s", k, other, key)
		}
		seen[key] = k
	}
}

func TestMemberRoundTrip(t *testing.T) {
	tenant, id, err := ParseMember(Member("t1", "a1"))
	require.NoError(t, err)
	assert.Equal(t, "t1", tenant)
	assert.Equal(t, "a1", id)

	for _, bad := range []string{"", "t1", ":a1", "t1:", "t1:a:b"} {
		_, _, err := ParseMember(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("abc-123"))

	for _, bad := range []string{"", "a:b", "time", "inactive", "all"} {
		err := Validate(bad)
		assert.True(t, errors.Is(err, ErrInvalidID), bad)
	}
}

func TestKindAttributes(t *testing.T) {
	assert.True(t, Audio.Evictable())
	assert.True(t, Storage.Evictable())
	assert.False(t, User.Evictable())
	assert.False(t, App.Evictable())

	assert.Equal(t, "bitRate", Audio.QualityField())
	assert.Equal(t, "resolution", Video.QualityField())
	assert.Equal(t, "pixelsSize", Image.QualityField())
	assert.Equal(t, "", Storage.QualityField())

	assert.Equal(t, []Kind{Audio, Storage, Image, Video}, EvictableKinds)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("image")
	require.NoError(t, err)
	assert.Equal(t, Image, k)

	k, err = ParseKind("AUDIO")
	require.NoError(t, err)
	assert.Equal(t, Audio, k)

	_, err = ParseKind("documents")
	assert.Error(t, err)
}

func TestTenantOfMembers(t *testing.T) {
	assert.Equal(t, "app:*:audio", MembersPattern(Audio))

	tenant, ok := TenantOfMembers(Members("t1", Audio), Audio)
	require.True(t, ok)
	assert.Equal(t, "t1", tenant)

	_, ok = TenantOfMembers(Emails("t1"), User)
	assert.False(t, ok)
	_, ok = TenantOfMembers(Members("t1", Video), Audio)
	assert.False(t, ok)
}
