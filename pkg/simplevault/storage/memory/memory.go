package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tendant/simple-vault/pkg/simplevault"
)

type object struct {
	data     []byte
	meta     simplevault.ObjectMeta
	modified time.Time
}

// Backend is an in-memory implementation of the simplevault.ObjectStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Put stores the bytes read from r under key
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, meta simplevault.ObjectMeta) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{data: data, meta: meta, modified: time.Now().UTC()}
	return nil
}

// Get returns a reader over a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, simplevault.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), nil
}

// Remove deletes the object; removing a missing key is not an error
func (b *Backend) Remove(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, key)
	return nil
}

// Copy duplicates srcKey to dstKey, overwriting dstKey
func (b *Backend) Copy(ctx context.Context, dstKey, srcKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj, exists := b.objects[srcKey]
	if !exists {
		return simplevault.ErrObjectNotFound
	}
	obj.data = bytes.Clone(obj.data)
	obj.modified = time.Now().UTC()
	b.objects[dstKey] = obj
	return nil
}

// Stat reports metadata for the object under key
func (b *Backend) Stat(ctx context.Context, key string) (*simplevault.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, simplevault.ErrObjectNotFound
	}
	return &simplevault.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.meta.ContentType,
		LastModified: obj.modified,
		Metadata: map[string]string{
			"plaintext-size": strconv.FormatInt(obj.meta.Size, 10),
		},
	}, nil
}

// Presign returns a memory:// URL carrying the key and expiry. It cannot be
// fetched over HTTP; it exists so callers can exercise the URL flow.
func (b *Backend) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	b.mu.RLock()
	_, exists := b.objects[key]
	b.mu.RUnlock()
	if !exists {
		return "", simplevault.ErrObjectNotFound
	}
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
	return fmt.Sprintf("memory:///%s?%s", url.PathEscape(key), q.Encode()), nil
}

// EnsureBucket is a no-op for the memory backend
func (b *Backend) EnsureBucket(ctx context.Context) error {
	return nil
}

// Keys returns the stored keys. Intended for tests.
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	return keys
}

// Raw returns a copy of the stored bytes. Intended for tests.
func (b *Backend) Raw(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}
