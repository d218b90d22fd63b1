package simplevault

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// authorizeVersion loads a version and checks the caller may read its file.
// A version of a file the caller cannot see is reported as missing.
func (s *service) authorizeVersion(ctx context.Context, versionID, callerID uuid.UUID) (*File, *FileVersion, error) {
	version, err := s.repository.GetVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return nil, nil, ErrVersionNotFound
		}
		return nil, nil, &VersionError{VersionID: versionID, Op: "get", Err: err}
	}
	file, _, err := s.guard.Authorize(ctx, version.FileID, callerID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, nil, ErrVersionNotFound
		}
		return nil, nil, err
	}
	if version.Status != VersionStatusAvailable {
		return nil, nil, ErrVersionNotReady
	}
	return file, version, nil
}

// GetDownloadURL returns a time-limited direct URL to the stored object.
// The object is encrypted at rest, so the URL serves ciphertext; clients
// that need plaintext use OpenVersion.
func (s *service) GetDownloadURL(ctx context.Context, versionID, callerID uuid.UUID) (string, error) {
	_, version, err := s.authorizeVersion(ctx, versionID, callerID)
	if err != nil {
		return "", err
	}
	var url string
	err = s.storeCall(ctx, "presign", version.StorageKey, func(ctx context.Context) error {
		var err error
		url, err = s.urls.URL(ctx, version.StorageKey, s.presignTTL)
		return err
	})
	if err != nil {
		return "", &VersionError{VersionID: versionID, Op: "presign", Err: err}
	}
	return url, nil
}

// OpenVersion streams the decrypted content of a version. The object store
// read runs under the call timeout, which stays armed until Body is closed.
func (s *service) OpenVersion(ctx context.Context, versionID, callerID uuid.UUID) (*Download, error) {
	file, version, err := s.authorizeVersion(ctx, versionID, callerID)
	if err != nil {
		return nil, err
	}

	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if s.callTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}

	object, err := s.store.Get(callCtx, version.StorageKey)
	if err != nil {
		cancel()
		return nil, &VersionError{VersionID: versionID, Op: "download", Err: transient("get object", version.StorageKey, err)}
	}

	plaintext, err := s.cipher.Decrypt(object)
	if err != nil {
		object.Close()
		cancel()
		if errors.Is(err, ErrCorruptObject) {
			s.logger.ErrorContext(ctx, "stored object is corrupt",
				"file_id", file.ID, "version_id", version.ID, "key", version.StorageKey)
			return nil, &VersionError{VersionID: versionID, Op: "decrypt", Err: err}
		}
		return nil, &VersionError{VersionID: versionID, Op: "decrypt", Err: transient("read object", version.StorageKey, err)}
	}

	return &Download{
		Body:          &downloadBody{Reader: plaintext, object: object, cancel: cancel},
		FileName:      file.Name,
		ContentType:   version.ContentType,
		Size:          version.Size,
		VersionNumber: version.VersionNumber,
	}, nil
}

type downloadBody struct {
	io.Reader
	object io.Closer
	cancel context.CancelFunc
}

func (b *downloadBody) Close() error {
	err := b.object.Close()
	b.cancel()
	return err
}
