package simplevault

import (
	"bytes"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxUploadSize is the largest accepted upload in bytes (10 MiB).
const DefaultMaxUploadSize int64 = 10 << 20

// MaxFileNameLength bounds file names.
const MaxFileNameLength = 255

var fileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// allowedContentTypes is the upload allow-list.
var allowedContentTypes = map[string]bool{
	"image/jpeg":       true,
	"image/png":        true,
	"image/gif":        true,
	"image/webp":       true,
	"video/mp4":        true,
	"video/webm":       true,
	"video/quicktime":  true,
	"application/pdf":  true,
	"text/plain":       true,
	"text/csv":         true,
	"text/markdown":    true,
	"application/json": true,
	"application/xml":  true,
}

// textualContentTypes have no reliable magic bytes and skip sniffing.
var textualContentTypes = map[string]bool{
	"text/plain":       true,
	"text/csv":         true,
	"text/markdown":    true,
	"application/json": true,
	"application/xml":  true,
}

// AllowedContentTypes returns the upload allow-list.
func AllowedContentTypes() []string {
	out := make([]string, 0, len(allowedContentTypes))
	for ct := range allowedContentTypes {
		out = append(out, ct)
	}
	return out
}

// NormalizeContentType lowercases a media type and strips its parameters.
func NormalizeContentType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsAllowedContentType reports whether ct is on the upload allow-list.
func IsAllowedContentType(ct string) bool {
	return allowedContentTypes[NormalizeContentType(ct)]
}

// ValidateFileName checks a display name against the naming rules.
func ValidateFileName(name string) error {
	switch {
	case name == "":
		return invalid("file name", "must not be empty")
	case len(name) > MaxFileNameLength:
		return invalid("file name", "must be at most %d characters", MaxFileNameLength)
	case name == "." || name == "..":
		return invalid("file name", "must not be %q", name)
	case !fileNamePattern.MatchString(name):
		return invalid("file name", "may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}

// validateDeclared checks the caller's declared size and type before any
// byte is read.
func validateDeclared(contentType string, size, limit int64) error {
	if size < 0 {
		return invalid("size", "must not be negative")
	}
	if size > limit {
		return invalid("size", "%d bytes exceeds the %d byte limit", size, limit)
	}
	if !IsAllowedContentType(contentType) {
		return invalid("content type", "%q is not allowed", contentType)
	}
	return nil
}

// readBounded buffers r up to limit bytes. Reading stops as soon as the
// limit is exceeded, so memory use never grows past limit+1.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, invalid("content", "missing body")
	}
	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, transient("read upload", "", err)
	}
	if n > limit {
		return nil, invalid("size", "content exceeds the %d byte limit", limit)
	}
	return buf.Bytes(), nil
}

// sniff checks the leading bytes against the allow-list. Textual types are
// accepted as declared. Anything else needs a binary signature: mimetype
// files HTML, SVG and scripts under text/plain, so the parent walk stops at
// the first textual or generic type.
func sniff(declared string, data []byte) error {
	if textualContentTypes[NormalizeContentType(declared)] {
		return nil
	}
	if len(data) == 0 {
		return invalid("content", "empty %s content", declared)
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		detected := NormalizeContentType(m.String())
		if textualContentTypes[detected] || detected == "application/octet-stream" {
			break
		}
		if allowedContentTypes[detected] {
			return nil
		}
	}
	return invalid("content", "signature does not match an allowed type")
}
