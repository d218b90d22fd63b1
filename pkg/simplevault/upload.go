package simplevault

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// Upload runs the upload saga: validate, sniff, assign a version, encrypt
// and store, record, notify. Validation failures happen before any write.
// A store failure after the version was reserved leaves a pending row that
// is logged as a consistency gap and returned as a transient error.
func (s *service) Upload(ctx context.Context, req UploadRequest) (*FileWithVersions, error) {
	result, err := s.upload(ctx, req)
	switch {
	case err == nil:
		uploadsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrValidation):
		uploadsTotal.WithLabelValues("invalid").Inc()
	default:
		uploadsTotal.WithLabelValues("failed").Inc()
	}
	return result, err
}

func (s *service) upload(ctx context.Context, req UploadRequest) (*FileWithVersions, error) {
	contentType := NormalizeContentType(req.ContentType)

	// 1. Validate
	if req.OwnerID == uuid.Nil {
		return nil, invalid("owner", "must be set")
	}
	if err := ValidateFileName(req.FileName); err != nil {
		return nil, err
	}
	if err := validateDeclared(contentType, req.Size, s.maxUploadSize); err != nil {
		return nil, err
	}
	data, err := readBounded(req.Reader, s.maxUploadSize)
	if err != nil {
		return nil, err
	}
	size := int64(len(data))
	if req.Size > 0 && size != req.Size {
		return nil, invalid("size", "declared %d bytes but received %d", req.Size, size)
	}

	// 2. Sniff
	if err := sniff(contentType, data); err != nil {
		return nil, err
	}

	// 3. Version and key
	file, next, err := s.versions.ResolveTarget(ctx, req.OwnerID, req.FileName)
	if err != nil {
		return nil, err
	}
	version, err := s.versions.Reserve(ctx, file, next, contentType, size)
	if err != nil {
		return nil, err
	}

	// 4. Encrypt and store
	err = s.storeCall(ctx, "put object", version.StorageKey, func(ctx context.Context) error {
		return s.putEncrypted(ctx, version.StorageKey, bytes.NewReader(data), ObjectMeta{ContentType: contentType, Size: size})
	})
	if err != nil {
		s.reportGap(ctx, gapOrphanedMetadata, "version reserved but object not stored",
			"file_id", file.ID, "version_id", version.ID, "key", version.StorageKey, "err", err)
		return nil, &VersionError{VersionID: version.ID, Op: "store", Err: err}
	}

	// 5. Record
	if err := s.repository.UpdateVersionStatus(ctx, version.ID, VersionStatusAvailable); err != nil {
		s.reportGap(ctx, gapOrphanedMetadata, "object stored but version not marked available",
			"file_id", file.ID, "version_id", version.ID, "key", version.StorageKey, "err", err)
		return nil, &VersionError{VersionID: version.ID, Op: "record", Err: err}
	}
	version.Status = VersionStatusAvailable
	uploadBytes.Observe(float64(size))

	result, err := s.loadVersions(ctx, file)
	if err != nil {
		return nil, err
	}

	// 6. Notify
	event := NewFileUploaded(req.OwnerID, s.timestamp(), s.audience(ctx, file), result, version)
	if err := s.events.Publish(ctx, event); err != nil {
		s.reportGap(ctx, gapUnpublishedEvent, "upload committed but durable event not published",
			"file_id", file.ID, "version_id", version.ID, "err", err)
	}

	return result, nil
}

func (s *service) putEncrypted(ctx context.Context, key string, plaintext io.Reader, meta ObjectMeta) error {
	encrypted, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, key, encrypted, meta)
}

// reportGap logs a consistency gap for the reconciliation sweep.
func (s *service) reportGap(ctx context.Context, kind, msg string, args ...any) {
	consistencyGaps.WithLabelValues(kind).Inc()
	s.logger.ErrorContext(ctx, msg, append([]any{"gap", kind}, args...)...)
}
