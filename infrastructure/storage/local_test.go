package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newLocal(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(LocalConfig{Dir: t.TempDir(), BaseURL: "http://dam.test/files/", SigningKey: "secret"})
	require.NoError(t, err)
	return s
}

func TestLocalStore_PutGetMoveDelete(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.Put(ctx, "t1/temp/a.png", strings.NewReader(string(pngHeader)), int64(len(pngHeader)), "image/png"))

	obj, err := s.Get(ctx, "t1/temp/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, int64(len(pngHeader)), obj.Size)

	require.NoError(t, s.Move(ctx, "t1/temp/a.png", "t1/a.png"))
	_, err = s.Get(ctx, "t1/temp/a.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, s.Delete(ctx, "t1/a.png"))
	assert.ErrorIs(t, s.Delete(ctx, "t1/a.png"), ErrObjectNotFound)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s := newLocal(t)
	err := s.Put(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_MoveMissing(t *testing.T) {
	s := newLocal(t)
	err := s.Move(context.Background(), "t1/temp/none.png", "t1/none.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStore_SignedURL(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	raw, err := s.SignedURL(ctx, "t1/a.png", time.Hour, "attachment")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "http://dam.test/files/t1/a.png?"), raw)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), expires)

	require.NoError(t, s.Verify("t1/a.png", expires, q.Get("disposition"), q.Get("signature")))
	assert.ErrorIs(t, s.Verify("t1/b.png", expires, q.Get("disposition"), q.Get("signature")), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify("t1/a.png", expires, "inline", q.Get("signature")), ErrInvalidSignature)

	now = now.Add(2 * time.Hour)
	err = s.Verify("t1/a.png", expires, q.Get("disposition"), q.Get("signature"))
	assert.True(t, errors.Is(err, ErrInvalidSignature), "expired URLs are rejected")
}

func TestNewLocalStore_RequiresDir(t *testing.T) {
	_, err := NewLocalStore(LocalConfig{})
	require.Error(t, err)
}
