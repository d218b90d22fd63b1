package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// VersionsHandler serves download URLs and decrypted content of versions
type VersionsHandler struct {
	service    simplevault.Service
	presignTTL time.Duration
}

func NewVersionsHandler(service simplevault.Service, presignTTL time.Duration) *VersionsHandler {
	if presignTTL <= 0 {
		presignTTL = simplevault.DefaultPresignTTL
	}
	return &VersionsHandler{service: service, presignTTL: presignTTL}
}

// Routes returns the router for version endpoints
func (h *VersionsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{version_id}/url", h.GetDownloadURL)
	r.Get("/{version_id}/download", h.Download)
	return r
}

// DownloadURLResponse carries a presigned URL and its lifetime in seconds
type DownloadURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *VersionsHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	url, err := h.service.GetDownloadURL(r.Context(), versionID, caller(r))
	if err != nil {
		writeError(w, r, "Failed to get download URL", err)
		return
	}
	render.JSON(w, r, DownloadURLResponse{
		URL:       url,
		ExpiresIn: int64(h.presignTTL / time.Second),
	})
}

// Download streams the decrypted version as an attachment
func (h *VersionsHandler) Download(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	download, err := h.service.OpenVersion(r.Context(), versionID, caller(r))
	if err != nil {
		writeError(w, r, "Failed to open version", err)
		return
	}
	defer download.Body.Close()

	w.Header().Set("Content-Type", download.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": download.FileName,
	}))
	w.Header().Set("Content-Length", strconv.FormatInt(download.Size, 10))
	w.Header().Set("X-Version-Number", strconv.Itoa(download.VersionNumber))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, download.Body); err != nil {
		// Headers are already sent; the client sees a short body.
		slog.ErrorContext(r.Context(), "Failed to stream version", "version_id", versionID, "err", err)
	}
}
