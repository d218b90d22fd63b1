package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// DBTX is an interface that allows us to use either a connection pool or a
// transaction. Begin on a pgx.Tx opens a savepoint.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements simplevault.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	return fn(tx)
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch {
			case strings.HasPrefix(pgErr.ConstraintName, "files_"):
				return fmt.Errorf("%s: %w", operation, simplevault.ErrFileExists)
			case strings.HasPrefix(pgErr.ConstraintName, "file_versions_"):
				return fmt.Errorf("%s: %w", operation, simplevault.ErrVersionConflict)
			}
			return fmt.Errorf("%s: duplicate entry (%s)", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", operation, simplevault.ErrFileNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: required field %s is missing", operation, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// File operations

const fileColumns = `id, owner_id, name, created_at, updated_at`

func scanFile(row pgx.Row) (*simplevault.File, error) {
	var f simplevault.File
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *Repository) CreateFile(ctx context.Context, file *simplevault.File) error {
	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, file.ID, file.OwnerID, file.Name, file.CreatedAt, file.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create file", err)
	}
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*simplevault.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplevault.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get file", err)
	}
	return file, nil
}

func (r *Repository) GetFileByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (*simplevault.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 AND name = $2`

	file, err := scanFile(r.db.QueryRow(ctx, query, ownerID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplevault.ErrFileNotFound
		}
		return nil, r.handlePostgresError("get file by name", err)
	}
	return file, nil
}

func (r *Repository) UpdateFile(ctx context.Context, file *simplevault.File) error {
	query := `UPDATE files SET name = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, file.ID, file.Name, file.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update file", err)
	}
	if tag.RowsAffected() == 0 {
		return simplevault.ErrFileNotFound
	}
	return nil
}

func (r *Repository) ListAccessibleFiles(ctx context.Context, userID uuid.UUID) ([]*simplevault.File, error) {
	query := `
		SELECT ` + fileColumns + ` FROM files f
		WHERE f.owner_id = $1
		   OR EXISTS (SELECT 1 FROM permissions p WHERE p.file_id = f.id AND p.user_id = $1)
		ORDER BY f.created_at DESC`

	return r.queryFiles(ctx, "list accessible files", query, userID)
}

func (r *Repository) ListSharedFiles(ctx context.Context, userID uuid.UUID) ([]*simplevault.File, error) {
	query := `
		SELECT ` + fileColumns + ` FROM files f
		WHERE f.owner_id <> $1
		  AND EXISTS (SELECT 1 FROM permissions p WHERE p.file_id = f.id AND p.user_id = $1)
		ORDER BY f.created_at DESC`

	return r.queryFiles(ctx, "list shared files", query, userID)
}

func (r *Repository) queryFiles(ctx context.Context, operation, query string, args ...interface{}) ([]*simplevault.File, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var result []*simplevault.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, r.handlePostgresError(operation, err)
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	return result, nil
}

// DeleteFile removes versions, permissions and the file in one transaction.
func (r *Repository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM file_versions WHERE file_id = $1`, id); err != nil {
			return r.handlePostgresError("delete versions", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE file_id = $1`, id); err != nil {
			return r.handlePostgresError("delete permissions", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
		if err != nil {
			return r.handlePostgresError("delete file", err)
		}
		if tag.RowsAffected() == 0 {
			return simplevault.ErrFileNotFound
		}
		return nil
	})
}

// Version operations

const versionColumns = `id, file_id, version_number, storage_key, size, content_type, status, created_at`

func scanVersion(row pgx.Row) (*simplevault.FileVersion, error) {
	var v simplevault.FileVersion
	var status string
	err := row.Scan(&v.ID, &v.FileID, &v.VersionNumber, &v.StorageKey,
		&v.Size, &v.ContentType, &status, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Status = simplevault.VersionStatus(status)
	return &v, nil
}

func (r *Repository) CreateVersion(ctx context.Context, version *simplevault.FileVersion) error {
	query := `
		INSERT INTO file_versions (` + versionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		version.ID, version.FileID, version.VersionNumber, version.StorageKey,
		version.Size, version.ContentType, string(version.Status), version.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create version", err)
	}
	return nil
}

func (r *Repository) GetVersion(ctx context.Context, id uuid.UUID) (*simplevault.FileVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM file_versions WHERE id = $1`

	version, err := scanVersion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplevault.ErrVersionNotFound
		}
		return nil, r.handlePostgresError("get version", err)
	}
	return version, nil
}

func (r *Repository) ListVersions(ctx context.Context, fileID uuid.UUID) ([]*simplevault.FileVersion, error) {
	query := `
		SELECT ` + versionColumns + ` FROM file_versions
		WHERE file_id = $1
		ORDER BY version_number DESC`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, r.handlePostgresError("list versions", err)
	}
	defer rows.Close()

	var result []*simplevault.FileVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, r.handlePostgresError("list versions", err)
		}
		result = append(result, version)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list versions", err)
	}
	return result, nil
}

func (r *Repository) MaxVersionNumber(ctx context.Context, fileID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM file_versions WHERE file_id = $1`, fileID).Scan(&n)
	if err != nil {
		return 0, r.handlePostgresError("max version", err)
	}
	return n, nil
}

func (r *Repository) UpdateVersionKey(ctx context.Context, id uuid.UUID, storageKey string) error {
	tag, err := r.db.Exec(ctx, `UPDATE file_versions SET storage_key = $2 WHERE id = $1`, id, storageKey)
	if err != nil {
		return r.handlePostgresError("update version key", err)
	}
	if tag.RowsAffected() == 0 {
		return simplevault.ErrVersionNotFound
	}
	return nil
}

func (r *Repository) UpdateVersionStatus(ctx context.Context, id uuid.UUID, status simplevault.VersionStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE file_versions SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return r.handlePostgresError("update version status", err)
	}
	if tag.RowsAffected() == 0 {
		return simplevault.ErrVersionNotFound
	}
	return nil
}

// Permission operations

const permissionColumns = `id, file_id, user_id, role, created_at, updated_at`

func scanPermission(row pgx.Row) (*simplevault.Permission, error) {
	var p simplevault.Permission
	var role string
	if err := row.Scan(&p.ID, &p.FileID, &p.UserID, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = simplevault.Role(role)
	return &p, nil
}

func (r *Repository) GetPermission(ctx context.Context, fileID, userID uuid.UUID) (*simplevault.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE file_id = $1 AND user_id = $2`

	perm, err := scanPermission(r.db.QueryRow(ctx, query, fileID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplevault.ErrPermissionNotFound
		}
		return nil, r.handlePostgresError("get permission", err)
	}
	return perm, nil
}

// UpsertPermission keeps one row per (file, user); a repeat grant only
// changes the role and updated_at.
func (r *Repository) UpsertPermission(ctx context.Context, permission *simplevault.Permission) (*simplevault.Permission, error) {
	query := `
		INSERT INTO permissions (` + permissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (file_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
		RETURNING ` + permissionColumns

	perm, err := scanPermission(r.db.QueryRow(ctx, query,
		permission.ID, permission.FileID, permission.UserID, string(permission.Role),
		permission.CreatedAt, permission.UpdatedAt))
	if err != nil {
		return nil, r.handlePostgresError("upsert permission", err)
	}
	return perm, nil
}

func (r *Repository) ListPermissions(ctx context.Context, fileID uuid.UUID) ([]*simplevault.Permission, error) {
	query := `
		SELECT ` + permissionColumns + ` FROM permissions
		WHERE file_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, r.handlePostgresError("list permissions", err)
	}
	defer rows.Close()

	var result []*simplevault.Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, r.handlePostgresError("list permissions", err)
		}
		result = append(result, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list permissions", err)
	}
	return result, nil
}
