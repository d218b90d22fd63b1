package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vault/pkg/simplevault"
	"github.com/tendant/simple-vault/pkg/simplevault/repo/memory"
)

func newFile(owner uuid.UUID, name string, created time.Time) *simplevault.File {
	return &simplevault.File{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   owner,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func newVersion(fileID uuid.UUID, n int, key string) *simplevault.FileVersion {
	return &simplevault.FileVersion{
		ID:            uuid.New(),
		FileID:        fileID,
		VersionNumber: n,
		StorageKey:    key,
		Size:          1,
		ContentType:   "text/plain",
		Status:        simplevault.VersionStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestRepository_Files(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	owner := uuid.New()
	file := newFile(owner, "report.pdf", time.Now().UTC())

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, repo.CreateFile(ctx, file))
	})

	t.Run("DuplicateOwnerAndName", func(t *testing.T) {
		err := repo.CreateFile(ctx, newFile(owner, "report.pdf", time.Now().UTC()))
		assert.ErrorIs(t, err, simplevault.ErrFileExists)
	})

	t.Run("SameNameOtherOwner", func(t *testing.T) {
		assert.NoError(t, repo.CreateFile(ctx, newFile(uuid.New(), "report.pdf", time.Now().UTC())))
	})

	t.Run("GetByOwnerAndName", func(t *testing.T) {
		got, err := repo.GetFileByOwnerAndName(ctx, owner, "report.pdf")
		require.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)

		_, err = repo.GetFileByOwnerAndName(ctx, owner, "missing.pdf")
		assert.ErrorIs(t, err, simplevault.ErrFileNotFound)
	})

	t.Run("UpdateMovesNameIndex", func(t *testing.T) {
		renamed := *file
		renamed.Name = "final.pdf"
		require.NoError(t, repo.UpdateFile(ctx, &renamed))

		_, err := repo.GetFileByOwnerAndName(ctx, owner, "report.pdf")
		assert.ErrorIs(t, err, simplevault.ErrFileNotFound)
		got, err := repo.GetFileByOwnerAndName(ctx, owner, "final.pdf")
		require.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)
	})

	t.Run("UpdateIntoTakenName", func(t *testing.T) {
		other := newFile(owner, "other.pdf", time.Now().UTC())
		require.NoError(t, repo.CreateFile(ctx, other))

		other.Name = "final.pdf"
		assert.ErrorIs(t, repo.UpdateFile(ctx, other), simplevault.ErrFileExists)
	})

	t.Run("ReturnedCopyIsDetached", func(t *testing.T) {
		got, err := repo.GetFile(ctx, file.ID)
		require.NoError(t, err)
		got.Name = "mutated"

		again, err := repo.GetFile(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, "final.pdf", again.Name)
	})
}

func TestRepository_Versions(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	file := newFile(uuid.New(), "a.txt", time.Now().UTC())
	require.NoError(t, repo.CreateFile(ctx, file))

	v1 := newVersion(file.ID, 1, "k1")
	v2 := newVersion(file.ID, 2, "k2")
	require.NoError(t, repo.CreateVersion(ctx, v1))
	require.NoError(t, repo.CreateVersion(ctx, v2))

	t.Run("DuplicateNumberConflicts", func(t *testing.T) {
		err := repo.CreateVersion(ctx, newVersion(file.ID, 2, "k3"))
		assert.ErrorIs(t, err, simplevault.ErrVersionConflict)
	})

	t.Run("ListDescending", func(t *testing.T) {
		versions, err := repo.ListVersions(ctx, file.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 2, versions[0].VersionNumber)
		assert.Equal(t, 1, versions[1].VersionNumber)
	})

	t.Run("MaxVersionNumber", func(t *testing.T) {
		n, err := repo.MaxVersionNumber(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = repo.MaxVersionNumber(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("UpdateKeyAndStatus", func(t *testing.T) {
		require.NoError(t, repo.UpdateVersionKey(ctx, v1.ID, "k1-renamed"))
		require.NoError(t, repo.UpdateVersionStatus(ctx, v1.ID, simplevault.VersionStatusAvailable))

		got, err := repo.GetVersion(ctx, v1.ID)
		require.NoError(t, err)
		assert.Equal(t, "k1-renamed", got.StorageKey)
		assert.Equal(t, simplevault.VersionStatusAvailable, got.Status)

		assert.ErrorIs(t, repo.UpdateVersionKey(ctx, v1.ID, "k2"), simplevault.ErrVersionConflict)
	})

	t.Run("MissingVersion", func(t *testing.T) {
		_, err := repo.GetVersion(ctx, uuid.New())
		assert.ErrorIs(t, err, simplevault.ErrVersionNotFound)
	})
}

func TestRepository_Permissions(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	owner, grantee := uuid.New(), uuid.New()
	file := newFile(owner, "shared.txt", time.Now().UTC())
	require.NoError(t, repo.CreateFile(ctx, file))

	first, err := repo.UpsertPermission(ctx, &simplevault.Permission{
		ID: uuid.New(), FileID: file.ID, UserID: grantee, Role: simplevault.RoleViewer,
	})
	require.NoError(t, err)

	second, err := repo.UpsertPermission(ctx, &simplevault.Permission{
		ID: uuid.New(), FileID: file.ID, UserID: grantee, Role: simplevault.RoleEditor,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, simplevault.RoleEditor, second.Role)

	perms, err := repo.ListPermissions(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, simplevault.RoleEditor, perms[0].Role)

	_, err = repo.GetPermission(ctx, file.ID, uuid.New())
	assert.ErrorIs(t, err, simplevault.ErrPermissionNotFound)
}

func TestRepository_ListAccessibleAndShared(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	own := newFile(alice, "mine.txt", base)
	shared := newFile(bob, "theirs.txt", base.Add(time.Minute))
	hidden := newFile(bob, "private.txt", base.Add(2*time.Minute))
	for _, f := range []*simplevault.File{own, shared, hidden} {
		require.NoError(t, repo.CreateFile(ctx, f))
	}
	_, err := repo.UpsertPermission(ctx, &simplevault.Permission{
		ID: uuid.New(), FileID: shared.ID, UserID: alice, Role: simplevault.RoleViewer,
	})
	require.NoError(t, err)

	accessible, err := repo.ListAccessibleFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, accessible, 2)
	assert.Equal(t, shared.ID, accessible[0].ID)
	assert.Equal(t, own.ID, accessible[1].ID)

	sharedOnly, err := repo.ListSharedFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, sharedOnly, 1)
	assert.Equal(t, shared.ID, sharedOnly[0].ID)
}

func TestRepository_DeleteFileCascades(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	owner := uuid.New()
	file := newFile(owner, "gone.txt", time.Now().UTC())
	require.NoError(t, repo.CreateFile(ctx, file))
	v := newVersion(file.ID, 1, "gone-key")
	require.NoError(t, repo.CreateVersion(ctx, v))
	_, err := repo.UpsertPermission(ctx, &simplevault.Permission{
		ID: uuid.New(), FileID: file.ID, UserID: uuid.New(), Role: simplevault.RoleViewer,
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteFile(ctx, file.ID))

	_, err = repo.GetFile(ctx, file.ID)
	assert.ErrorIs(t, err, simplevault.ErrFileNotFound)
	_, err = repo.GetVersion(ctx, v.ID)
	assert.ErrorIs(t, err, simplevault.ErrVersionNotFound)
	perms, err := repo.ListPermissions(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	// Name and key are free again
	recreated := newFile(owner, "gone.txt", time.Now().UTC())
	require.NoError(t, repo.CreateFile(ctx, recreated))
	assert.NoError(t, repo.CreateVersion(ctx, newVersion(recreated.ID, 1, "gone-key")))

	assert.ErrorIs(t, repo.DeleteFile(ctx, uuid.New()), simplevault.ErrFileNotFound)
}
