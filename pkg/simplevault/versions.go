package simplevault

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// VersionManager assigns version numbers and storage keys.
//
// Both the (owner, name) lookup-or-create and the number assignment are
// optimistic: the repository rejects duplicates through unique constraints
// and the manager retries with fresh reads. No in-process lock is involved,
// so several processes can share one metadata store.
type VersionManager struct {
	repository Repository
	keys       KeyGenerator
	retries    int
	now        func() time.Time
}

// NewVersionManager creates a manager that retries conflicts up to retries times.
func NewVersionManager(repo Repository, keys KeyGenerator, retries int, now func() time.Time) *VersionManager {
	if retries < 1 {
		retries = 1
	}
	return &VersionManager{repository: repo, keys: keys, retries: retries, now: now}
}

// ResolveTarget returns the owner's file with this name, creating it when
// missing, and the version number the next upload would take.
func (m *VersionManager) ResolveTarget(ctx context.Context, ownerID uuid.UUID, name string) (*File, int, error) {
	file, err := m.findOrCreate(ctx, ownerID, name)
	if err != nil {
		return nil, 0, err
	}
	n, err := m.repository.MaxVersionNumber(ctx, file.ID)
	if err != nil {
		return nil, 0, &FileError{FileID: file.ID, Op: "max version", Err: err}
	}
	return file, n + 1, nil
}

// Reserve inserts a pending version row numbered next. A concurrent writer
// taking the same number makes the insert fail with ErrVersionConflict,
// after which the number is re-read and the insert retried.
func (m *VersionManager) Reserve(ctx context.Context, file *File, next int, contentType string, size int64) (*FileVersion, error) {
	for attempt := 0; attempt < m.retries; attempt++ {
		if attempt > 0 {
			n, err := m.repository.MaxVersionNumber(ctx, file.ID)
			if err != nil {
				return nil, &FileError{FileID: file.ID, Op: "max version", Err: err}
			}
			next = n + 1
		}
		at := m.now()
		version := &FileVersion{
			ID:            uuid.New(),
			FileID:        file.ID,
			VersionNumber: next,
			StorageKey:    m.keys.GenerateKey(file.OwnerID, file.ID, next, at, file.Name),
			Size:          size,
			ContentType:   contentType,
			Status:        VersionStatusPending,
			CreatedAt:     at,
		}
		err := m.repository.CreateVersion(ctx, version)
		if err == nil {
			return version, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, &FileError{FileID: file.ID, Op: "reserve version", Err: err}
		}
	}
	return nil, &TransientError{Op: "reserve version", Err: ErrVersionConflict}
}

// KeyFor recomputes the storage key a version should have under name.
func (m *VersionManager) KeyFor(file *File, version *FileVersion, name string) string {
	return m.keys.GenerateKey(file.OwnerID, file.ID, version.VersionNumber, version.CreatedAt, name)
}

func (m *VersionManager) findOrCreate(ctx context.Context, ownerID uuid.UUID, name string) (*File, error) {
	for attempt := 0; attempt < m.retries; attempt++ {
		file, err := m.repository.GetFileByOwnerAndName(ctx, ownerID, name)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, ErrFileNotFound) {
			return nil, err
		}

		now := m.now()
		file = &File{
			ID:        uuid.New(),
			Name:      name,
			OwnerID:   ownerID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = m.repository.CreateFile(ctx, file)
		if err == nil {
			return file, nil
		}
		// Lost the race to another creator; read its row next time round.
		if !errors.Is(err, ErrFileExists) {
			return nil, err
		}
	}
	return nil, &TransientError{Op: "resolve upload target", Err: ErrFileExists}
}
