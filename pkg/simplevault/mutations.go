package simplevault

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Delete removes a file, its versions and grants, then its objects.
//
// The durable event is published before the metadata transaction so that
// durable consumers observe the intent even if the transaction fails. The
// realtime event follows the commit. Objects are removed one by one; a
// failed removal leaves an orphaned object that is logged, not returned.
func (s *service) Delete(ctx context.Context, fileID, callerID uuid.UUID) error {
	file, _, err := s.guard.Require(ctx, fileID, callerID, RoleOwner)
	if err != nil {
		return err
	}
	versions, err := s.repository.ListVersions(ctx, fileID)
	if err != nil {
		return &FileError{FileID: fileID, Op: "delete", Err: err}
	}

	event := NewFileDeleted(callerID, s.timestamp(), s.audience(ctx, file), file, len(versions))
	if err := s.events.PublishDurable(ctx, event); err != nil {
		return &FileError{FileID: fileID, Op: "delete", Err: err}
	}

	if err := s.repository.DeleteFile(ctx, fileID); err != nil {
		return &FileError{FileID: fileID, Op: "delete", Err: err}
	}

	s.events.PublishRealtime(ctx, event)

	for _, v := range versions {
		key := v.StorageKey
		err := s.storeCall(ctx, "remove object", key, func(ctx context.Context) error {
			return s.store.Remove(ctx, key)
		})
		if err != nil && !errors.Is(err, ErrObjectNotFound) {
			s.reportGap(ctx, gapOrphanedObject, "object left behind after delete",
				"file_id", fileID, "version_id", v.ID, "key", key, "err", err)
		}
	}

	return nil
}

// Rename moves every version to a key derived from the new name, then
// renames the file. The per-version loop is not atomic, but each step
// checks the current key against the desired one, so re-running an
// interrupted rename resumes where it stopped.
func (s *service) Rename(ctx context.Context, req RenameRequest) (*FileWithVersions, error) {
	if err := ValidateFileName(req.NewName); err != nil {
		return nil, err
	}
	file, _, err := s.guard.Require(ctx, req.FileID, req.CallerID, RoleEditor)
	if err != nil {
		return nil, err
	}
	if file.Name == req.NewName {
		return s.loadVersions(ctx, file)
	}

	other, err := s.repository.GetFileByOwnerAndName(ctx, file.OwnerID, req.NewName)
	switch {
	case err == nil && other.ID != file.ID:
		return nil, ErrNameTaken
	case err != nil && !errors.Is(err, ErrFileNotFound):
		return nil, &FileError{FileID: file.ID, Op: "rename", Err: err}
	}

	versions, err := s.repository.ListVersions(ctx, file.ID)
	if err != nil {
		return nil, &FileError{FileID: file.ID, Op: "rename", Err: err}
	}
	for _, v := range versions {
		if err := s.moveVersion(ctx, file, v, req.NewName); err != nil {
			return nil, &VersionError{VersionID: v.ID, Op: "rename", Err: err}
		}
	}

	previous := file.Name
	file.Name = req.NewName
	file.UpdatedAt = s.timestamp()
	if err := s.repository.UpdateFile(ctx, file); err != nil {
		if errors.Is(err, ErrFileExists) {
			return nil, ErrNameTaken
		}
		return nil, &FileError{FileID: file.ID, Op: "rename", Err: err}
	}

	result, err := s.loadVersions(ctx, file)
	if err != nil {
		return nil, err
	}

	event := NewFileUpdated(req.CallerID, s.timestamp(), s.audience(ctx, file), result, previous)
	if err := s.events.Publish(ctx, event); err != nil {
		s.reportGap(ctx, gapUnpublishedEvent, "rename committed but durable event not published",
			"file_id", file.ID, "err", err)
	}
	return result, nil
}

// moveVersion copies one version's object to its key under name, removes
// the old object and records the new key.
func (s *service) moveVersion(ctx context.Context, file *File, v *FileVersion, name string) error {
	desired := s.versions.KeyFor(file, v, name)
	if v.StorageKey == desired {
		return nil
	}
	old := v.StorageKey

	err := s.storeCall(ctx, "copy object", old, func(ctx context.Context) error {
		return s.store.Copy(ctx, desired, old)
	})
	switch {
	case errors.Is(err, ErrObjectNotFound):
		// A previous run may have copied and removed the source already.
		statErr := s.storeCall(ctx, "stat object", desired, func(ctx context.Context) error {
			_, err := s.store.Stat(ctx, desired)
			return err
		})
		if statErr != nil && !(errors.Is(statErr, ErrObjectNotFound) && v.Status == VersionStatusPending) {
			return err
		}
	case err != nil:
		return err
	default:
		rmErr := s.storeCall(ctx, "remove object", old, func(ctx context.Context) error {
			return s.store.Remove(ctx, old)
		})
		if rmErr != nil && !errors.Is(rmErr, ErrObjectNotFound) {
			s.reportGap(ctx, gapOrphanedObject, "old object left behind after rename",
				"file_id", file.ID, "version_id", v.ID, "key", old, "err", rmErr)
		}
	}

	if err := s.repository.UpdateVersionKey(ctx, v.ID, desired); err != nil {
		return err
	}
	v.StorageKey = desired
	return nil
}

// Share grants target a role on the file, replacing any earlier grant. Only
// owners may share.
func (s *service) Share(ctx context.Context, req ShareRequest) (*Permission, error) {
	if !req.Role.Valid() {
		return nil, invalid("role", "%q is not one of owner, editor, viewer", req.Role)
	}
	if req.TargetUserID == uuid.Nil {
		return nil, invalid("user", "must be set")
	}
	file, _, err := s.guard.Require(ctx, req.FileID, req.CallerID, RoleOwner)
	if err != nil {
		return nil, err
	}
	if req.TargetUserID == file.OwnerID {
		return nil, invalid("user", "the file owner already has full access")
	}

	now := s.timestamp()
	perm, err := s.repository.UpsertPermission(ctx, &Permission{
		ID:        uuid.New(),
		FileID:    file.ID,
		UserID:    req.TargetUserID,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, &FileError{FileID: file.ID, Op: "share", Err: err}
	}
	return perm, nil
}
