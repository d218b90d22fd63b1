package simplevault

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ObjectStore defines the interface for the encrypted object backend
type ObjectStore interface {
	// Put stores the bytes read from r under key
	Put(ctx context.Context, key string, r io.Reader, meta ObjectMeta) error

	// Get opens the object stored under key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Remove deletes the object stored under key
	Remove(ctx context.Context, key string) error

	// Copy duplicates the object at srcKey to dstKey
	Copy(ctx context.Context, dstKey, srcKey string) error

	// Stat reports metadata for the object under key
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Presign returns a time-limited direct download URL
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)

	// EnsureBucket checks the bucket exists and creates it when missing
	EnsureBucket(ctx context.Context) error
}

// Repository defines the interface for file, version and permission persistence
type Repository interface {
	// File operations
	CreateFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, id uuid.UUID) (*File, error)
	GetFileByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (*File, error)
	UpdateFile(ctx context.Context, file *File) error
	// ListAccessibleFiles returns files owned by or shared with userID, newest first
	ListAccessibleFiles(ctx context.Context, userID uuid.UUID) ([]*File, error)
	// ListSharedFiles returns files shared with userID that userID does not own, newest first
	ListSharedFiles(ctx context.Context, userID uuid.UUID) ([]*File, error)
	// DeleteFile removes the file with its versions and permissions in one transaction
	DeleteFile(ctx context.Context, id uuid.UUID) error

	// Version operations
	CreateVersion(ctx context.Context, version *FileVersion) error
	GetVersion(ctx context.Context, id uuid.UUID) (*FileVersion, error)
	// ListVersions returns versions of a file ordered by version number descending
	ListVersions(ctx context.Context, fileID uuid.UUID) ([]*FileVersion, error)
	MaxVersionNumber(ctx context.Context, fileID uuid.UUID) (int, error)
	UpdateVersionKey(ctx context.Context, id uuid.UUID, storageKey string) error
	UpdateVersionStatus(ctx context.Context, id uuid.UUID, status VersionStatus) error

	// Permission operations
	GetPermission(ctx context.Context, fileID, userID uuid.UUID) (*Permission, error)
	// UpsertPermission creates the grant or updates the role of the existing one
	UpsertPermission(ctx context.Context, permission *Permission) (*Permission, error)
	ListPermissions(ctx context.Context, fileID uuid.UUID) ([]*Permission, error)
}

// Cipher encrypts and decrypts object streams
type Cipher interface {
	// Encrypt returns a reader producing IV || ciphertext
	Encrypt(plaintext io.Reader) (io.Reader, error)
	// Decrypt consumes the IV and returns a reader producing plaintext
	Decrypt(object io.Reader) (io.Reader, error)
}

// KeyGenerator builds deterministic storage keys for versions
type KeyGenerator interface {
	GenerateKey(ownerID, fileID uuid.UUID, versionNumber int, uploadedAt time.Time, name string) string
}

// RealtimeBus fans events out to live subscribers, at most once
type RealtimeBus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe delivers events of one kind until ctx is done, then closes the channel
	Subscribe(ctx context.Context, kind EventKind) (<-chan Event, error)
}

// DurableLog appends events to a persistent log, at least once
type DurableLog interface {
	Publish(ctx context.Context, event Event) error
}

// URLIssuer produces time-limited download URLs for stored objects
type URLIssuer interface {
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
