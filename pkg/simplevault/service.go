package simplevault

import (
	"context"

	"github.com/google/uuid"
)

// Service is the main interface that provides versioned file storage operations.
// Every operation takes the already-authenticated caller's id.
type Service interface {
	// Read operations
	ListFiles(ctx context.Context, callerID uuid.UUID) ([]*FileWithVersions, error)
	ListSharedFiles(ctx context.Context, callerID uuid.UUID) ([]*FileWithVersions, error)
	GetFile(ctx context.Context, fileID, callerID uuid.UUID) (*FileWithVersions, error)
	ListVersions(ctx context.Context, fileID, callerID uuid.UUID) ([]*FileVersion, error)
	ListPermissions(ctx context.Context, fileID, callerID uuid.UUID) ([]*Permission, error)

	// Mutations
	Upload(ctx context.Context, req UploadRequest) (*FileWithVersions, error)
	Delete(ctx context.Context, fileID, callerID uuid.UUID) error
	Rename(ctx context.Context, req RenameRequest) (*FileWithVersions, error)
	Share(ctx context.Context, req ShareRequest) (*Permission, error)

	// Downloads
	GetDownloadURL(ctx context.Context, versionID, callerID uuid.UUID) (string, error)
	OpenVersion(ctx context.Context, versionID, callerID uuid.UUID) (*Download, error)

	// Subscribe returns the realtime feed for one event kind. The channel is
	// closed when ctx is done.
	Subscribe(ctx context.Context, kind EventKind) (<-chan Event, error)
}
