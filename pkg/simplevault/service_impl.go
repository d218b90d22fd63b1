package simplevault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-vault/pkg/simplevault/objectkey"
)

// Defaults for service options.
const (
	DefaultCallTimeout    = 30 * time.Second
	DefaultPresignTTL     = time.Hour
	DefaultVersionRetries = 5
)

// service implements the Service interface
type service struct {
	repository Repository
	store      ObjectStore
	cipher     Cipher
	keys       KeyGenerator
	urls       URLIssuer
	guard      *AccessGuard
	versions   *VersionManager
	events     *EventDispatcher

	realtime RealtimeBus
	durable  DurableLog
	logger   *slog.Logger

	maxUploadSize  int64
	callTimeout    time.Duration
	presignTTL     time.Duration
	versionRetries int
	now            func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithObjectStore sets the object store holding encrypted versions
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithCipher sets the object cipher
func WithCipher(c Cipher) Option {
	return func(s *service) {
		s.cipher = c
	}
}

// WithKeyGenerator overrides the storage key layout
func WithKeyGenerator(g KeyGenerator) Option {
	return func(s *service) {
		s.keys = g
	}
}

// WithURLIssuer overrides how download URLs are produced, e.g. with a cache
func WithURLIssuer(u URLIssuer) Option {
	return func(s *service) {
		s.urls = u
	}
}

// WithRealtimeBus sets the realtime event channel
func WithRealtimeBus(bus RealtimeBus) Option {
	return func(s *service) {
		s.realtime = bus
	}
}

// WithDurableLog sets the durable event channel
func WithDurableLog(log DurableLog) Option {
	return func(s *service) {
		s.durable = log
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMaxUploadSize overrides the upload size cap
func WithMaxUploadSize(n int64) Option {
	return func(s *service) {
		s.maxUploadSize = n
	}
}

// WithCallTimeout bounds every object store and event bus call
func WithCallTimeout(d time.Duration) Option {
	return func(s *service) {
		s.callTimeout = d
	}
}

// WithPresignTTL sets the lifetime of download URLs
func WithPresignTTL(d time.Duration) Option {
	return func(s *service) {
		s.presignTTL = d
	}
}

// WithVersionRetries bounds retries when a version number is taken concurrently
func WithVersionRetries(n int) Option {
	return func(s *service) {
		s.versionRetries = n
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		maxUploadSize:  DefaultMaxUploadSize,
		callTimeout:    DefaultCallTimeout,
		presignTTL:     DefaultPresignTTL,
		versionRetries: DefaultVersionRetries,
		now:            time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.cipher == nil {
		return nil, fmt.Errorf("cipher is required")
	}
	if s.keys == nil {
		s.keys = objectkey.NewVersionedGenerator()
	}
	if s.urls == nil {
		s.urls = storeURLIssuer{store: s.store}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.versionRetries < 1 {
		s.versionRetries = 1
	}

	s.guard = NewAccessGuard(s.repository)
	s.versions = NewVersionManager(s.repository, s.keys, s.versionRetries, s.timestamp)
	s.events = NewEventDispatcher(s.realtime, s.durable, s.callTimeout, s.logger)

	return s, nil
}

// storeURLIssuer presigns directly against the object store.
type storeURLIssuer struct {
	store ObjectStore
}

func (u storeURLIssuer) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return u.store.Presign(ctx, key, ttl)
}

// Read operations

func (s *service) ListFiles(ctx context.Context, callerID uuid.UUID) ([]*FileWithVersions, error) {
	files, err := s.repository.ListAccessibleFiles(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return s.withVersions(ctx, files)
}

func (s *service) ListSharedFiles(ctx context.Context, callerID uuid.UUID) ([]*FileWithVersions, error) {
	files, err := s.repository.ListSharedFiles(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared files: %w", err)
	}
	return s.withVersions(ctx, files)
}

func (s *service) GetFile(ctx context.Context, fileID, callerID uuid.UUID) (*FileWithVersions, error) {
	file, _, err := s.guard.Authorize(ctx, fileID, callerID)
	if err != nil {
		return nil, err
	}
	return s.loadVersions(ctx, file)
}

func (s *service) ListVersions(ctx context.Context, fileID, callerID uuid.UUID) ([]*FileVersion, error) {
	if _, _, err := s.guard.Authorize(ctx, fileID, callerID); err != nil {
		return nil, err
	}
	versions, err := s.repository.ListVersions(ctx, fileID)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "list versions", Err: err}
	}
	return versions, nil
}

func (s *service) ListPermissions(ctx context.Context, fileID, callerID uuid.UUID) ([]*Permission, error) {
	if _, _, err := s.guard.Require(ctx, fileID, callerID, RoleOwner); err != nil {
		return nil, err
	}
	perms, err := s.repository.ListPermissions(ctx, fileID)
	if err != nil {
		return nil, &FileError{FileID: fileID, Op: "list permissions", Err: err}
	}
	return perms, nil
}

func (s *service) Subscribe(ctx context.Context, kind EventKind) (<-chan Event, error) {
	if _, err := ParseEventKind(string(kind)); err != nil {
		return nil, err
	}
	return s.events.Subscribe(ctx, kind)
}

// Helpers

func (s *service) loadVersions(ctx context.Context, file *File) (*FileWithVersions, error) {
	versions, err := s.repository.ListVersions(ctx, file.ID)
	if err != nil {
		return nil, &FileError{FileID: file.ID, Op: "list versions", Err: err}
	}
	return &FileWithVersions{File: *file, Versions: versions}, nil
}

func (s *service) withVersions(ctx context.Context, files []*File) ([]*FileWithVersions, error) {
	out := make([]*FileWithVersions, 0, len(files))
	for _, f := range files {
		fv, err := s.loadVersions(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, fv)
	}
	return out, nil
}

// audience lists the owner and every grantee of file. A lookup failure
// narrows the audience to the owner rather than failing the mutation.
func (s *service) audience(ctx context.Context, file *File) []uuid.UUID {
	ids := []uuid.UUID{file.OwnerID}
	perms, err := s.repository.ListPermissions(ctx, file.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list grantees for event audience", "file_id", file.ID, "err", err)
		return ids
	}
	for _, p := range perms {
		ids = append(ids, p.UserID)
	}
	return ids
}

// storeCall runs an object store call under the call timeout and classifies
// its failure.
func (s *service) storeCall(ctx context.Context, op, key string, fn func(context.Context) error) error {
	return transient(op, key, withTimeout(ctx, s.callTimeout, fn))
}

// timestamp returns the current time truncated to what every repository
// stores, so keys recomputed from a stored CreatedAt match.
func (s *service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
