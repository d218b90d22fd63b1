package simplevault

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level a principal holds on a file.
type Role string

// Role constants (typed).
const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// atLeast reports whether r grants everything want grants.
func (r Role) atLeast(want Role) bool {
	return roleRank[r] >= roleRank[want]
}

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// VersionStatus is the lifecycle state of a stored version.
type VersionStatus string

// Version status constants (typed).
const (
	// VersionStatusPending marks a reserved version whose object is not stored yet.
	VersionStatusPending VersionStatus = "pending"
	// VersionStatusAvailable marks a version whose encrypted object is stored.
	VersionStatusAvailable VersionStatus = "available"
)

// File is a named, owned container of versions.
type File struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileVersion is an immutable snapshot of a file's content.
type FileVersion struct {
	ID            uuid.UUID     `json:"id"`
	FileID        uuid.UUID     `json:"file_id"`
	VersionNumber int           `json:"version_number"`
	StorageKey    string        `json:"storage_key"`
	Size          int64         `json:"size"`
	ContentType   string        `json:"content_type"`
	Status        VersionStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Permission grants a non-owner role-scoped access to a file.
type Permission struct {
	ID        uuid.UUID `json:"id"`
	FileID    uuid.UUID `json:"file_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileWithVersions is a file together with its versions, newest first.
type FileWithVersions struct {
	File
	Versions []*FileVersion `json:"versions"`
}

// Latest returns the newest version, or nil when the file has none.
func (f *FileWithVersions) Latest() *FileVersion {
	if len(f.Versions) == 0 {
		return nil
	}
	return f.Versions[0]
}

// ObjectMeta is store-side metadata attached to an encrypted object.
type ObjectMeta struct {
	ContentType string
	// Size is the plaintext size in bytes.
	Size int64
}

// ObjectInfo describes an object as reported by the store.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}
