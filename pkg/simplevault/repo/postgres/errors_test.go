package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"OwnerNameUnique", &pgconn.PgError{Code: "23505", ConstraintName: "files_owner_name_key"}, simplevault.ErrFileExists},
		{"FilePrimaryKey", &pgconn.PgError{Code: "23505", ConstraintName: "files_pkey"}, simplevault.ErrFileExists},
		{"VersionNumberUnique", &pgconn.PgError{Code: "23505", ConstraintName: "file_versions_file_number_key"}, simplevault.ErrVersionConflict},
		{"StorageKeyUnique", &pgconn.PgError{Code: "23505", ConstraintName: "file_versions_storage_key_key"}, simplevault.ErrVersionConflict},
		{"MissingParent", &pgconn.PgError{Code: "23503", ConstraintName: "file_versions_file_id_fkey"}, simplevault.ErrFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.handlePostgresError("op", tt.err), tt.want)
		})
	}

	t.Run("UndefinedTable", func(t *testing.T) {
		err := r.handlePostgresError("op", &pgconn.PgError{Code: "42P01"})
		assert.Contains(t, err.Error(), "migration required")
	})

	t.Run("OtherErrorsWrapped", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := r.handlePostgresError("get file", cause)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "get file")
	})
}
