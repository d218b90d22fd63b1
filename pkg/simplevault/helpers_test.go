package simplevault_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vault/pkg/simplevault"
	"github.com/tendant/simple-vault/pkg/simplevault/cipher"
	"github.com/tendant/simple-vault/pkg/simplevault/events/realtime"
	"github.com/tendant/simple-vault/pkg/simplevault/repo/memory"
	memorystorage "github.com/tendant/simple-vault/pkg/simplevault/storage/memory"
)

var errInjected = errors.New("injected failure")

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

// recorder collects the order of side effects across fakes
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// faultyStore wraps the memory backend with injectable failures
type faultyStore struct {
	*memorystorage.Backend
	rec *recorder

	mu        sync.Mutex
	putErr    error
	failCopyN int // fail the Nth Copy call (1-based); 0 disables
	copies    int
}

func (s *faultyStore) Put(ctx context.Context, key string, r io.Reader, meta simplevault.ObjectMeta) error {
	s.mu.Lock()
	err := s.putErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Backend.Put(ctx, key, r, meta)
}

func (s *faultyStore) Copy(ctx context.Context, dstKey, srcKey string) error {
	s.mu.Lock()
	s.copies++
	fail := s.copies == s.failCopyN
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.Backend.Copy(ctx, dstKey, srcKey)
}

func (s *faultyStore) Remove(ctx context.Context, key string) error {
	s.rec.add("remove %s", key)
	return s.Backend.Remove(ctx, key)
}

// recordingRepo notes when the metadata delete happens
type recordingRepo struct {
	simplevault.Repository
	rec *recorder

	mu             sync.Mutex
	failKeyUpdateN int // fail the Nth UpdateVersionKey call (1-based); 0 disables
	keyUpdates     int
}

func (r *recordingRepo) UpdateVersionKey(ctx context.Context, id uuid.UUID, storageKey string) error {
	r.mu.Lock()
	r.keyUpdates++
	fail := r.keyUpdates == r.failKeyUpdateN
	r.mu.Unlock()
	if fail {
		return errInjected
	}
	return r.Repository.UpdateVersionKey(ctx, id, storageKey)
}

func (r *recordingRepo) DeleteFile(ctx context.Context, id uuid.UUID) error {
	r.rec.add("delete metadata")
	return r.Repository.DeleteFile(ctx, id)
}

// fakeDurable captures durable events
type fakeDurable struct {
	rec *recorder

	mu     sync.Mutex
	err    error
	events []simplevault.Event
}

func (d *fakeDurable) Publish(ctx context.Context, event simplevault.Event) error {
	d.rec.add("durable %s", event.Kind())
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, event)
	return nil
}

func (d *fakeDurable) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDurable) published() []simplevault.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]simplevault.Event(nil), d.events...)
}

type testEnv struct {
	svc     simplevault.Service
	repo    *memory.Repository
	keys    *recordingRepo
	store   *faultyStore
	durable *fakeDurable
	hub     *realtime.Hub
	rec     *recorder
}

func setupService(t *testing.T, opts ...simplevault.Option) *testEnv {
	t.Helper()
	rec := &recorder{}
	env := &testEnv{
		repo:    memory.New(),
		store:   &faultyStore{Backend: memorystorage.New(), rec: rec},
		durable: &fakeDurable{rec: rec},
		hub:     realtime.NewHub(),
		rec:     rec,
	}
	env.keys = &recordingRepo{Repository: env.repo, rec: rec}
	c, err := cipher.NewFromSecret("test-encryption-secret")
	require.NoError(t, err)

	base := []simplevault.Option{
		simplevault.WithRepository(env.keys),
		simplevault.WithObjectStore(env.store),
		simplevault.WithCipher(c),
		simplevault.WithRealtimeBus(env.hub),
		simplevault.WithDurableLog(env.durable),
	}
	env.svc, err = simplevault.New(append(base, opts...)...)
	require.NoError(t, err)
	return env
}

func (e *testEnv) upload(t *testing.T, owner uuid.UUID, name, contentType string, data []byte) *simplevault.FileWithVersions {
	t.Helper()
	file, err := e.svc.Upload(context.Background(), simplevault.UploadRequest{
		OwnerID:     owner,
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Reader:      bytes.NewReader(data),
	})
	require.NoError(t, err)
	return file
}

func (e *testEnv) read(t *testing.T, versionID, caller uuid.UUID) string {
	t.Helper()
	download, err := e.svc.OpenVersion(context.Background(), versionID, caller)
	require.NoError(t, err)
	defer download.Body.Close()
	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	return string(data)
}

func versionNumbers(versions []*simplevault.FileVersion) []int {
	out := make([]int, len(versions))
	for i, v := range versions {
		out[i] = v.VersionNumber
	}
	return out
}
