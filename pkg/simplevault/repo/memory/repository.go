package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

type ownerName struct {
	ownerID uuid.UUID
	name    string
}

type fileVersionNumber struct {
	fileID uuid.UUID
	number int
}

type fileUser struct {
	fileID uuid.UUID
	userID uuid.UUID
}

// Repository is an in-memory implementation of the simplevault.Repository
// interface. It enforces the same uniqueness rules as the postgres schema so
// the optimistic version assignment behaves identically.
type Repository struct {
	mu          sync.RWMutex
	files       map[uuid.UUID]*simplevault.File
	versions    map[uuid.UUID]*simplevault.FileVersion
	permissions map[uuid.UUID]*simplevault.Permission

	// Unique indexes
	fileNames      map[ownerName]uuid.UUID
	versionNumbers map[fileVersionNumber]uuid.UUID
	storageKeys    map[string]uuid.UUID
	grants         map[fileUser]uuid.UUID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		files:          make(map[uuid.UUID]*simplevault.File),
		versions:       make(map[uuid.UUID]*simplevault.FileVersion),
		permissions:    make(map[uuid.UUID]*simplevault.Permission),
		fileNames:      make(map[ownerName]uuid.UUID),
		versionNumbers: make(map[fileVersionNumber]uuid.UUID),
		storageKeys:    make(map[string]uuid.UUID),
		grants:         make(map[fileUser]uuid.UUID),
	}
}

// File operations

func (r *Repository) CreateFile(ctx context.Context, file *simplevault.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[file.ID]; exists {
		return simplevault.ErrFileExists
	}
	key := ownerName{file.OwnerID, file.Name}
	if _, exists := r.fileNames[key]; exists {
		return simplevault.ErrFileExists
	}

	// Create a copy to avoid external modifications
	fileCopy := *file
	r.files[file.ID] = &fileCopy
	r.fileNames[key] = file.ID
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*simplevault.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[id]
	if !exists {
		return nil, simplevault.ErrFileNotFound
	}
	fileCopy := *file
	return &fileCopy, nil
}

func (r *Repository) GetFileByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (*simplevault.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.fileNames[ownerName{ownerID, name}]
	if !exists {
		return nil, simplevault.ErrFileNotFound
	}
	fileCopy := *r.files[id]
	return &fileCopy, nil
}

func (r *Repository) UpdateFile(ctx context.Context, file *simplevault.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.files[file.ID]
	if !exists {
		return simplevault.ErrFileNotFound
	}
	newKey := ownerName{file.OwnerID, file.Name}
	if holder, taken := r.fileNames[newKey]; taken && holder != file.ID {
		return simplevault.ErrFileExists
	}

	delete(r.fileNames, ownerName{current.OwnerID, current.Name})
	fileCopy := *file
	r.files[file.ID] = &fileCopy
	r.fileNames[newKey] = file.ID
	return nil
}

func (r *Repository) ListAccessibleFiles(ctx context.Context, userID uuid.UUID) ([]*simplevault.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplevault.File
	for _, file := range r.files {
		if file.OwnerID == userID || r.hasGrant(file.ID, userID) {
			fileCopy := *file
			result = append(result, &fileCopy)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (r *Repository) ListSharedFiles(ctx context.Context, userID uuid.UUID) ([]*simplevault.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplevault.File
	for _, file := range r.files {
		if file.OwnerID != userID && r.hasGrant(file.ID, userID) {
			fileCopy := *file
			result = append(result, &fileCopy)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

// DeleteFile removes the file, its versions and its grants under one lock.
func (r *Repository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists {
		return simplevault.ErrFileNotFound
	}

	for vid, v := range r.versions {
		if v.FileID == id {
			delete(r.versionNumbers, fileVersionNumber{id, v.VersionNumber})
			delete(r.storageKeys, v.StorageKey)
			delete(r.versions, vid)
		}
	}
	for pid, p := range r.permissions {
		if p.FileID == id {
			delete(r.grants, fileUser{id, p.UserID})
			delete(r.permissions, pid)
		}
	}
	delete(r.fileNames, ownerName{file.OwnerID, file.Name})
	delete(r.files, id)
	return nil
}

// Version operations

func (r *Repository) CreateVersion(ctx context.Context, version *simplevault.FileVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[version.FileID]; !exists {
		return simplevault.ErrFileNotFound
	}
	number := fileVersionNumber{version.FileID, version.VersionNumber}
	if _, exists := r.versionNumbers[number]; exists {
		return simplevault.ErrVersionConflict
	}
	if _, exists := r.storageKeys[version.StorageKey]; exists {
		return simplevault.ErrVersionConflict
	}

	versionCopy := *version
	r.versions[version.ID] = &versionCopy
	r.versionNumbers[number] = version.ID
	r.storageKeys[version.StorageKey] = version.ID
	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*simplevault.FileVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	version, exists := r.versions[id]
	if !exists {
		return nil, simplevault.ErrVersionNotFound
	}
	versionCopy := *version
	return &versionCopy, nil
}

func (r *Repository) ListVersions(ctx context.Context, fileID uuid.UUID) ([]*simplevault.FileVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplevault.FileVersion
	for _, v := range r.versions {
		if v.FileID == fileID {
			versionCopy := *v
			result = append(result, &versionCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].VersionNumber > result[j].VersionNumber
	})
	return result, nil
}

func (r *Repository) MaxVersionNumber(ctx context.Context, fileID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	max := 0
	for _, v := range r.versions {
		if v.FileID == fileID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

func (r *Repository) UpdateVersionKey(ctx context.Context, id uuid.UUID, storageKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	version, exists := r.versions[id]
	if !exists {
		return simplevault.ErrVersionNotFound
	}
	if holder, taken := r.storageKeys[storageKey]; taken && holder != id {
		return simplevault.ErrVersionConflict
	}
	delete(r.storageKeys, version.StorageKey)
	version.StorageKey = storageKey
	r.storageKeys[storageKey] = id
	return nil
}

func (r *Repository) UpdateVersionStatus(ctx context.Context, id uuid.UUID, status simplevault.VersionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	version, exists := r.versions[id]
	if !exists {
		return simplevault.ErrVersionNotFound
	}
	version.Status = status
	return nil
}

// Permission operations

func (r *Repository) GetPermission(ctx context.Context, fileID, userID uuid.UUID) (*simplevault.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.grants[fileUser{fileID, userID}]
	if !exists {
		return nil, simplevault.ErrPermissionNotFound
	}
	permCopy := *r.permissions[id]
	return &permCopy, nil
}

// UpsertPermission keeps one row per (file, user); a repeat grant only
// changes the role and UpdatedAt.
func (r *Repository) UpsertPermission(ctx context.Context, permission *simplevault.Permission) (*simplevault.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[permission.FileID]; !exists {
		return nil, simplevault.ErrFileNotFound
	}

	key := fileUser{permission.FileID, permission.UserID}
	if id, exists := r.grants[key]; exists {
		current := r.permissions[id]
		current.Role = permission.Role
		current.UpdatedAt = permissionTime(permission.UpdatedAt)
		permCopy := *current
		return &permCopy, nil
	}

	stored := *permission
	r.permissions[stored.ID] = &stored
	r.grants[key] = stored.ID
	permCopy := stored
	return &permCopy, nil
}

func (r *Repository) ListPermissions(ctx context.Context, fileID uuid.UUID) ([]*simplevault.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*simplevault.Permission
	for _, p := range r.permissions {
		if p.FileID == fileID {
			permCopy := *p
			result = append(result, &permCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Helper methods

// hasGrant must be called with the lock held.
func (r *Repository) hasGrant(fileID, userID uuid.UUID) bool {
	_, ok := r.grants[fileUser{fileID, userID}]
	return ok
}

func sortNewestFirst(files []*simplevault.File) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
}

func permissionTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
