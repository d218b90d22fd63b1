package simplevault

import (
	"io"

	"github.com/google/uuid"
)

// UploadRequest contains parameters for uploading a new version of a file.
// A file is addressed by (OwnerID, FileName); the first upload creates it.
type UploadRequest struct {
	OwnerID     uuid.UUID
	FileName    string
	ContentType string
	// Size is the declared size in bytes; zero means unknown.
	Size   int64
	Reader io.Reader
}

// RenameRequest contains parameters for renaming a file
type RenameRequest struct {
	FileID   uuid.UUID
	NewName  string
	CallerID uuid.UUID
}

// ShareRequest contains parameters for granting a role on a file
type ShareRequest struct {
	FileID       uuid.UUID
	CallerID     uuid.UUID
	TargetUserID uuid.UUID
	Role         Role
}

// Download is an open, decrypted version stream. Body must be closed.
type Download struct {
	Body          io.ReadCloser
	FileName      string
	ContentType   string
	Size          int64
	VersionNumber int
}
