package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"MatchPoster/internal/model"

	gcs "cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestKey(t *testing.T) {
	assert.Equal(t, "posters/u1/r1/poster.jpg", Key("u1", "r1", AssetPoster, "image/jpeg"))
	assert.Equal(t, "posters/u1/r1/background.png", Key("u1", "r1", AssetBackground, "image/PNG"))
	assert.Equal(t, "posters/_/r1/poster.bin", Key("", "r1", AssetPoster, ""))
	assert.Equal(t, "posters/__etc/r1/poster.jpg", Key("../etc", "r1", AssetPoster, "image/jpeg"))
	assert.Equal(t, "image/webp", MimeFromKey("a/b.webp"))
}

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), quietLogger())
	require.NoError(t, err)
	ctx := context.Background()
	key := Key("owner", "rec", AssetPoster, "image/jpeg")

	require.NoError(t, store.Put(ctx, key, []byte("jpeg-bytes"), "image/jpeg"))
	data, ct, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "image/jpeg", ct)

	require.NoError(t, store.Delete(ctx, key))
	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, model.ErrBlobNotFound)
	assert.ErrorIs(t, store.Delete(ctx, key), model.ErrBlobNotFound)
}

func TestLocalStore_RejectsEscape(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), quietLogger())
	require.NoError(t, err)
	err = store.Put(context.Background(), "../outside.jpg", []byte("x"), "")
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestMapGCSError(t *testing.T) {
	err := mapGCSError("k", fmt.Errorf("wrapped: %w", gcs.ErrObjectNotExist))
	assert.ErrorIs(t, err, model.ErrBlobNotFound)

	err = mapGCSError("k", errors.New("permission denied"))
	assert.NotErrorIs(t, err, model.ErrBlobNotFound)
}
