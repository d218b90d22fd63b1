package objectkey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for version key generation strategies
type Generator interface {
	// GenerateKey creates the object key for one version of a file
	GenerateKey(ownerID, fileID uuid.UUID, versionNumber int, uploadedAt time.Time, name string) string
}

// VersionedGenerator builds keys of the form
// {ownerId}/{fileId}/v{versionNumber}-{uploadEpochMs}-{name}.
//
// The upload timestamp keeps keys unique even when the same logical version
// is retried, and lets a key be recomputed from the version row alone.
type VersionedGenerator struct{}

func NewVersionedGenerator() *VersionedGenerator {
	return &VersionedGenerator{}
}

func (g *VersionedGenerator) GenerateKey(ownerID, fileID uuid.UUID, versionNumber int, uploadedAt time.Time, name string) string {
	return fmt.Sprintf("%s/%s/v%d-%d-%s", ownerID, fileID, versionNumber, uploadedAt.UnixMilli(), sanitizeFilename(name))
}

// PrefixedGenerator places every key produced by Base under a fixed prefix,
// e.g. to share one bucket between environments.
type PrefixedGenerator struct {
	Base   Generator
	Prefix string
}

func NewPrefixedGenerator(prefix string) *PrefixedGenerator {
	return &PrefixedGenerator{
		Base:   NewVersionedGenerator(),
		Prefix: sanitizePathComponent(prefix),
	}
}

func (g *PrefixedGenerator) GenerateKey(ownerID, fileID uuid.UUID, versionNumber int, uploadedAt time.Time, name string) string {
	baseKey := g.Base.GenerateKey(ownerID, fileID, versionNumber, uploadedAt, name)
	if g.Prefix == "" {
		return baseKey
	}
	return fmt.Sprintf("%s/%s", g.Prefix, baseKey)
}

// Parts are the components recovered from a versioned key.
type Parts struct {
	OwnerID       uuid.UUID
	FileID        uuid.UUID
	VersionNumber int
	UploadedAt    time.Time
	Name          string
}

var versionSegment = regexp.MustCompile(`^v(\d+)-(\d+)-(.+)$`)

// Parse splits a key produced by VersionedGenerator. Any leading prefix
// segments are ignored.
func Parse(key string) (Parts, error) {
	segments := strings.Split(key, "/")
	if len(segments) < 3 {
		return Parts{}, fmt.Errorf("malformed version key %q", key)
	}
	segments = segments[len(segments)-3:]

	ownerID, err := uuid.Parse(segments[0])
	if err != nil {
		return Parts{}, fmt.Errorf("malformed owner in key %q: %w", key, err)
	}
	fileID, err := uuid.Parse(segments[1])
	if err != nil {
		return Parts{}, fmt.Errorf("malformed file in key %q: %w", key, err)
	}
	m := versionSegment.FindStringSubmatch(segments[2])
	if m == nil {
		return Parts{}, fmt.Errorf("malformed version segment in key %q", key)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Parts{}, fmt.Errorf("malformed version number in key %q: %w", key, err)
	}
	ms, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Parts{}, fmt.Errorf("malformed timestamp in key %q: %w", key, err)
	}
	return Parts{
		OwnerID:       ownerID,
		FileID:        fileID,
		VersionNumber: n,
		UploadedAt:    time.UnixMilli(ms).UTC(),
		Name:          m[3],
	}, nil
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	component = strings.Trim(component, "/")
	return strings.ReplaceAll(sanitizeFilename(component), "..", "_")
}
