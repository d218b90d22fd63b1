package simplevault

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-vault/pkg/simplevault/cipher"
)

// Error types
var (
	// ErrFileNotFound indicates a file does not exist or the caller may not see it
	ErrFileNotFound = errors.New("file not found")

	// ErrVersionNotFound indicates a version does not exist or the caller may not see it
	ErrVersionNotFound = errors.New("version not found")

	// ErrObjectNotFound indicates the object store has no object under the key
	ErrObjectNotFound = errors.New("object not found")

	// ErrForbidden indicates the caller can see the file but lacks the role for the operation
	ErrForbidden = errors.New("insufficient role for operation")

	// ErrFileExists indicates the owner already has a file with this name
	ErrFileExists = errors.New("file already exists")

	// ErrNameTaken indicates a rename target collides with another file of the same owner
	ErrNameTaken = errors.New("file name already in use")

	// ErrVersionConflict indicates the version number was taken by a concurrent upload
	ErrVersionConflict = errors.New("version number already assigned")

	// ErrVersionNotReady indicates the version's object has not been stored yet
	ErrVersionNotReady = errors.New("version not ready for download")

	// ErrPermissionNotFound indicates no grant exists for the (file, user) pair
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrCorruptObject indicates a stored object is too short to hold an IV
	ErrCorruptObject = cipher.ErrCorruptObject

	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrTransient is matched by every *TransientError
	ErrTransient = errors.New("transient failure")
)

// ValidationError reports input rejected before any durable write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransientError reports a retryable failure of an external call.
type TransientError struct {
	Op      string
	Key     string
	Timeout bool
	Err     error
}

func (e *TransientError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}
	if e.Key != "" {
		return fmt.Sprintf("%s %s for key %s: %v", e.Op, kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, kind, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// IsTimeout reports whether err is a transient failure caused by a deadline.
func IsTimeout(err error) bool {
	var te *TransientError
	return errors.As(err, &te) && te.Timeout
}

// transient classifies an external-call error. Not-found results pass through
// untouched so callers can still distinguish them.
func transient(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		return err
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{
		Op:      op,
		Key:     key,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

// FileError represents an error related to file operations
type FileError struct {
	FileID uuid.UUID
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// VersionError represents an error related to version operations
type VersionError struct {
	VersionID uuid.UUID
	Op        string
	Err       error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version operation %s failed for version %s: %v", e.Op, e.VersionID, e.Err)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}
