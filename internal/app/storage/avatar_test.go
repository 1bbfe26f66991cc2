package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]ObjectInfo
	deleted chan string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]ObjectInfo{}, deleted: make(chan string, 4)}
}

func (f *fakeStore) PresignUpload(_ context.Context, key, mimeType string, size int64, d time.Duration) (string, error) {
	return fmt.Sprintf("https://bucket.test/%s?type=%s&size=%d&ttl=%d", key, mimeType, size, int(d.Seconds())), nil
}

func (f *fakeStore) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://bucket.test/" + key + "?signed", nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	f.deleted <- key
	return nil
}

func (f *fakeStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.objects[key]
	if !ok {
		return ObjectInfo{}, errs.NewError(errs.ErrAvatarNotSet)
	}
	return info, nil
}

func (f *fakeStore) put(key string, info ObjectInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = info
}

type fakeRecorder struct {
	refs map[string]string
}

func (r *fakeRecorder) SetAvatar(_ context.Context, id, avatarRef string) (model.Identity, error) {
	r.refs[id] = avatarRef
	return model.Identity{ID: id, AvatarRef: avatarRef, Version: 2}, nil
}

func TestValidateFileType(t *testing.T) {
	assert.Nil(t, ValidateFileType("me.PNG", "image/png"))
	assert.Nil(t, ValidateFileType("me.jpeg", "IMAGE/JPEG"))

	for _, tc := range []struct{ name, mime string }{
		{"me.png", "image/jpeg"},
		{"me.svg", "image/svg+xml"},
		{"me", "image/png"},
		{"notes.txt", "text/plain"},
	} {
		customErr := ValidateFileType(tc.name, tc.mime)
		require.NotNil(t, customErr, "%s %s", tc.name, tc.mime)
		assert.Equal(t, errs.ErrFileTypeInvalid, customErr.Code)
	}
}

func TestValidateFileSize(t *testing.T) {
	assert.Nil(t, ValidateFileSize(MaxAvatarSize))
	assert.Equal(t, errs.ErrInvalidParams, ValidateFileSize(0).Code)

	tooLarge := ValidateFileSize(MaxAvatarSize + 1)
	require.NotNil(t, tooLarge)
	assert.Equal(t, errs.ErrFileSizeTooLarge, tooLarge.Code)
	assert.Contains(t, tooLarge.Message, "5 MB")
}

func TestRequestUpload(t *testing.T) {
	avatars := NewAvatars(newFakeStore(), &fakeRecorder{refs: map[string]string{}}, "")

	up, err := avatars.RequestUpload(context.Background(), "user-1", UploadRequest{
		FileName: "Me.PNG",
		MimeType: "image/png",
		FileSize: 2048,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.AvatarRef, "avatars/user-1/"), up.AvatarRef)
	assert.True(t, strings.HasSuffix(up.AvatarRef, ".png"), up.AvatarRef)
	assert.Contains(t, up.UploadURL, up.AvatarRef)
	assert.Equal(t, 300, up.ExpiresIn)

	_, err = avatars.RequestUpload(context.Background(), "user-1", UploadRequest{
		FileName: "Me.PNG",
		MimeType: "image/png",
		FileSize: MaxAvatarSize + 1,
	})
	assert.True(t, errs.Is(err, errs.ErrFileSizeTooLarge))
}

func TestConfirm(t *testing.T) {
	store := newFakeStore()
	recorder := &fakeRecorder{refs: map[string]string{}}
	avatars := NewAvatars(store, recorder, "")
	ctx := context.Background()
	identity := model.Identity{ID: "user-1", AvatarRef: "avatars/user-1/old.png"}

	_, err := avatars.Confirm(ctx, identity, "avatars/user-2/theirs.png")
	assert.True(t, errs.Is(err, errs.ErrValidation), "keys of other users are rejected")

	_, err = avatars.Confirm(ctx, identity, "avatars/user-1/../user-2/x.png")
	assert.True(t, errs.Is(err, errs.ErrValidation))

	_, err = avatars.Confirm(ctx, identity, "avatars/user-1/missing.png")
	assert.True(t, errs.Is(err, errs.ErrAvatarNotSet))

	store.put("avatars/user-1/doc.pdf", ObjectInfo{ContentType: "application/pdf", Size: 10})
	_, err = avatars.Confirm(ctx, identity, "avatars/user-1/doc.pdf")
	assert.True(t, errs.Is(err, errs.ErrFileTypeInvalid))

	store.put("avatars/user-1/huge.png", ObjectInfo{ContentType: "image/png", Size: MaxAvatarSize + 1})
	_, err = avatars.Confirm(ctx, identity, "avatars/user-1/huge.png")
	assert.True(t, errs.Is(err, errs.ErrFileSizeTooLarge))

	assert.Empty(t, recorder.refs, "rejected confirmations must not be recorded")

	store.put("avatars/user-1/new.png", ObjectInfo{ContentType: "image/png", Size: 1024})
	updated, err := avatars.Confirm(ctx, identity, "avatars/user-1/new.png")
	require.NoError(t, err)
	assert.Equal(t, "avatars/user-1/new.png", updated.AvatarRef)

	select {
	case key := <-store.deleted:
		assert.Equal(t, "avatars/user-1/old.png", key)
	case <-time.After(2 * time.Second):
		t.Fatal("the replaced avatar was not deleted")
	}
}

func TestDownloadURL(t *testing.T) {
	ctx := context.Background()
	identity := model.Identity{ID: "user-1", AvatarRef: "avatars/user-1/a.png"}

	signed := NewAvatars(newFakeStore(), nil, "")
	url, err := signed.DownloadURL(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.test/avatars/user-1/a.png?signed", url)

	public := NewAvatars(newFakeStore(), nil, "https://cdn.example.com/")
	url, err = public.DownloadURL(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/user-1/a.png", url)

	_, err = public.DownloadURL(ctx, model.Identity{ID: "user-2"})
	assert.True(t, errs.Is(err, errs.ErrAvatarNotSet))
}

func TestS3Client_PresignAndStat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/avatars-bucket/avatars/user-1/a.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", "1234")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, err := NewObjectStore(context.Background(), ServiceConfig{
		S3BucketName:      "avatars-bucket",
		S3Endpoint:        server.URL,
		S3AccessKeyID:     "test-key",
		S3SecretAccessKey: "test-secret",
	})
	require.NoError(t, err)

	url, err := store.PresignUpload(context.Background(), "avatars/user-1/a.png", "image/png", 1234, PresignedURLDuration)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, server.URL+"/avatars-bucket/avatars/user-1/a.png?"), url)
	assert.Contains(t, url, "X-Amz-Expires=300")

	info, err := store.Stat(context.Background(), "avatars/user-1/a.png")
	require.NoError(t, err)
	assert.Equal(t, ObjectInfo{ContentType: "image/png", Size: 1234}, info)

	_, err = store.Stat(context.Background(), "avatars/user-1/missing.png")
	assert.True(t, errs.Is(err, errs.ErrAvatarNotSet))
}
