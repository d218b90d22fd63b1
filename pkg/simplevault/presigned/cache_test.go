package presigned_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vault/pkg/simplevault/presigned"
)

type countingPresigner struct {
	calls int
	err   error
}

func (p *countingPresigner) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("https://example.test/%s?n=%d&ttl=%s", key, p.calls, ttl), nil
}

func TestCache_HitsWithinHalfTTL(t *testing.T) {
	signer := &countingPresigner{}
	cache := presigned.NewCache(signer, 10, time.Hour)
	ctx := context.Background()

	first, err := cache.URL(ctx, "owner/file/v1-1-a.txt", time.Hour)
	require.NoError(t, err)
	second, err := cache.URL(ctx, "owner/file/v1-1-a.txt", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, signer.calls)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_ExpiresAtHalfTTL(t *testing.T) {
	signer := &countingPresigner{}
	cache := presigned.NewCache(signer, 10, 200*time.Millisecond)
	ctx := context.Background()

	_, err := cache.URL(ctx, "k", 200*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	_, err = cache.URL(ctx, "k", 200*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 2, signer.calls)
}

func TestCache_ShorterTTLBypasses(t *testing.T) {
	signer := &countingPresigner{}
	cache := presigned.NewCache(signer, 10, time.Hour)
	ctx := context.Background()

	_, err := cache.URL(ctx, "k", time.Minute)
	require.NoError(t, err)
	_, err = cache.URL(ctx, "k", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 2, signer.calls)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	signer := &countingPresigner{err: errors.New("signing failed")}
	cache := presigned.NewCache(signer, 10, time.Hour)

	_, err := cache.URL(context.Background(), "k", time.Hour)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}
