package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vault/pkg/simplevault"
	memorystorage "github.com/tendant/simple-vault/pkg/simplevault/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "owner/file/v1-1700000000000-notes.txt"
	testData := "Hello, World! This is test data."

	t.Run("Put", func(t *testing.T) {
		err := backend.Put(ctx, testKey, strings.NewReader(testData), simplevault.ObjectMeta{
			ContentType: "text/plain",
			Size:        int64(len(testData)),
		})
		assert.NoError(t, err)
	})

	t.Run("Stat", func(t *testing.T) {
		info, err := backend.Stat(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, info.Key)
		assert.Equal(t, int64(len(testData)), info.Size)
		assert.Equal(t, "text/plain", info.ContentType)
		assert.False(t, info.LastModified.IsZero())
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := backend.Get(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("Copy", func(t *testing.T) {
		dst := "owner/file/v1-1700000000000-renamed.txt"
		require.NoError(t, backend.Copy(ctx, dst, testKey))

		copied, ok := backend.Raw(dst)
		require.True(t, ok)
		assert.Equal(t, testData, string(copied))

		original, ok := backend.Raw(testKey)
		require.True(t, ok)
		assert.Equal(t, testData, string(original))
	})

	t.Run("CopyMissingSource", func(t *testing.T) {
		err := backend.Copy(ctx, "a", "does/not/exist")
		assert.ErrorIs(t, err, simplevault.ErrObjectNotFound)
	})

	t.Run("Presign", func(t *testing.T) {
		url, err := backend.Presign(ctx, testKey, time.Hour)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "memory:///"))
		assert.Contains(t, url, "expires=")

		_, err = backend.Presign(ctx, "missing", time.Hour)
		assert.ErrorIs(t, err, simplevault.ErrObjectNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, backend.Remove(ctx, testKey))

		_, err := backend.Get(ctx, testKey)
		assert.ErrorIs(t, err, simplevault.ErrObjectNotFound)

		// Removing again is not an error
		assert.NoError(t, backend.Remove(ctx, testKey))
	})

	t.Run("StatMissing", func(t *testing.T) {
		_, err := backend.Stat(ctx, "missing")
		assert.ErrorIs(t, err, simplevault.ErrObjectNotFound)
	})
}

func TestMemoryBackend_GetReturnsCopy(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, "k", strings.NewReader("abc"), simplevault.ObjectMeta{}))

	reader, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	data[0] = 'z'

	stored, _ := backend.Raw("k")
	assert.Equal(t, "abc", string(stored))
}
