package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"baas-cache/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_Delete(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)

	dir := filepath.Join(root, "t1", "audio", "a1")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "track.mp3"), []byte("x"), 0644))
	keep := filepath.Join(root, "t1", "audio", "a2")
	require.NoError(t, os.MkdirAll(keep, 0755))

	require.NoError(t, s.Delete(context.Background(), "t1/audio/a1"))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(keep)
	assert.NoError(t, err)

	// 重复删除不报错
	assert.NoError(t, s.Delete(context.Background(), "t1/audio/a1"))
}

func TestFSStore_StaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	s, err := NewFSStore(root)
	require.NoError(t, err)

	outside := filepath.Join(parent, "outside")
	require.NoError(t, os.MkdirAll(outside, 0755))

	require.NoError(t, s.Delete(context.Background(), "../outside"))
	_, err = os.Stat(outside)
	assert.NoError(t, err)

	for _, bad := range []string{"", "/", " ", ".."} {
		err := s.Delete(context.Background(), bad)
		assert.True(t, errors.Is(err, ErrInvalidDir), bad)
	}
	_, err = os.Stat(root)
	assert.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	m.Put("/a")
	m.Put("/b")
	boom := errors.New("boom")
	m.FailOn("/b", boom)

	require.NoError(t, m.Delete(context.Background(), "/a"))
	assert.False(t, m.Has("/a"))

	err := m.Delete(context.Background(), "/b")
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.Has("/b"))

	assert.Equal(t, []string{"/a"}, m.Deleted())
	assert.Equal(t, []string{"/b"}, m.Dirs())

	assert.ErrorIs(t, m.Delete(context.Background(), ""), ErrInvalidDir)
}

func TestMemoryStore_DeletedLogIsBounded(t *testing.T) {
	m := NewMemoryStore()
	for i := 0; i < deletedLogSize+10; i++ {
		require.NoError(t, m.Delete(context.Background(), fmt.Sprintf("/d%d", i)))
	}

	deleted := m.Deleted()
	require.Len(t, deleted, deletedLogSize)
	assert.Equal(t, "/d10", deleted[0])
	assert.Equal(t, fmt.Sprintf("/d%d", deletedLogSize+9), deleted[len(deleted)-1])
}

// fakeS3 按前缀列出与删除对象
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]bool
	lists   []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	f.lists = append(f.lists, prefix)

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range in.Delete.Objects {
		delete(f.objects, aws.ToString(id.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3Store_Delete(t *testing.T) {
	fake := &fakeS3{objects: map[string]bool{
		"media/t1/video/v1/a.mp4":  true,
		"media/t1/video/v1/b.mp4":  true,
		"media/t1/video/v10/c.mp4": true,
		"media/t2/video/v1/d.mp4":  true,
		"other/t1/video/v1/e.mp4":  true,
	}}
	s := newS3Store(fake, "bucket", "/media/")

	require.NoError(t, s.Delete(context.Background(), "/t1/video/v1"))

	assert.Equal(t, []string{"media/t1/video/v1/"}, fake.lists)
	assert.False(t, fake.objects["media/t1/video/v1/a.mp4"])
	assert.False(t, fake.objects["media/t1/video/v1/b.mp4"])
	assert.True(t, fake.objects["media/t1/video/v10/c.mp4"])
	assert.True(t, fake.objects["media/t2/video/v1/d.mp4"])
	assert.True(t, fake.objects["other/t1/video/v1/e.mp4"])

	assert.ErrorIs(t, s.Delete(context.Background(), "/"), ErrInvalidDir)
}

func TestNewFromConfig(t *testing.T) {
	// 未配置类型时不能悄悄退回内存实现
	_, err := NewFromConfig(context.Background(), Config{})
	assert.Error(t, err)

	s, err := NewFromConfig(context.Background(), Config{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewFromConfig(context.Background(), Config{Type: "fs", Root: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FSStore{}, s)

	_, err = NewFromConfig(context.Background(), Config{Type: "fs"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), Config{Type: "s3", S3: config.S3Config{}})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}
