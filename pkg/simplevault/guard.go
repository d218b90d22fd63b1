package simplevault

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// AccessGuard decides what a caller may do with a file. It holds no state of
// its own and has no side effects.
type AccessGuard struct {
	repository Repository
}

// NewAccessGuard creates a guard reading grants from repo.
func NewAccessGuard(repo Repository) *AccessGuard {
	return &AccessGuard{repository: repo}
}

// Authorize returns the file and the caller's role on it. The owner holds
// RoleOwner; anyone else needs a Permission row. A file the caller may not
// see is reported as ErrFileNotFound, indistinguishable from a missing one.
func (g *AccessGuard) Authorize(ctx context.Context, fileID, callerID uuid.UUID) (*File, Role, error) {
	file, err := g.repository.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, "", ErrFileNotFound
		}
		return nil, "", err
	}
	if file.OwnerID == callerID {
		return file, RoleOwner, nil
	}

	perm, err := g.repository.GetPermission(ctx, fileID, callerID)
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			return nil, "", ErrFileNotFound
		}
		return nil, "", err
	}
	return file, perm.Role, nil
}

// Require is Authorize plus a minimum role. A visible file with too weak a
// role yields ErrForbidden.
func (g *AccessGuard) Require(ctx context.Context, fileID, callerID uuid.UUID, want Role) (*File, Role, error) {
	file, role, err := g.Authorize(ctx, fileID, callerID)
	if err != nil {
		return nil, "", err
	}
	if !role.atLeast(want) {
		return nil, role, ErrForbidden
	}
	return file, role, nil
}
