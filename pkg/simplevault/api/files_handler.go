package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

// multipartOverhead allows for form boundaries and headers on top of the file
const multipartOverhead = 1 << 20

// FilesHandler handles file listing, upload and management endpoints
type FilesHandler struct {
	service       simplevault.Service
	maxUploadSize int64
}

func NewFilesHandler(service simplevault.Service, maxUploadSize int64) *FilesHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = simplevault.DefaultMaxUploadSize
	}
	return &FilesHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListFiles)
	r.Post("/", h.Upload)
	r.Get("/shared", h.ListSharedFiles)
	r.Route("/{file_id}", func(r chi.Router) {
		r.Get("/", h.GetFile)
		r.Patch("/", h.Rename)
		r.Delete("/", h.Delete)
		r.Get("/versions", h.ListVersions)
		r.Get("/permissions", h.ListPermissions)
		r.Put("/permissions", h.Share)
	})
	return r
}

// RenameRequest is the body of PATCH /files/{id}
type RenameRequest struct {
	Name string `json:"name"`
}

// ShareRequest is the body of PUT /files/{id}/permissions
type ShareRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ListFiles(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, "Failed to list files", err)
		return
	}
	render.JSON(w, r, nonNil(files))
}

func (h *FilesHandler) ListSharedFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ListSharedFiles(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, "Failed to list shared files", err)
		return
	}
	render.JSON(w, r, nonNil(files))
}

// Upload accepts a multipart form with a "file" part and an optional "name"
// field overriding the part's filename.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, ErrorResponse{Error: "upload exceeds size limit"})
			return
		}
		badRequest(w, r, "Invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "Missing file part", err)
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	result, err := h.service.Upload(r.Context(), simplevault.UploadRequest{
		OwnerID:     caller(r),
		FileName:    name,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      file,
	})
	if err != nil {
		writeError(w, r, "Failed to upload file", err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "file_id")
	if !ok {
		return
	}
	file, err := h.service.GetFile(r.Context(), fileID, caller(r))
	if err != nil {
		writeError(w, r, "Failed to get file", err)
		return
	}
	render.JSON(w, r, file)
}

func (h *FilesHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "file_id")
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(r.Context(), fileID, caller(r))
	if err != nil {
		writeError(w, r, "Failed to list versions", err)
		return
	}
	render.JSON(w, r, nonNil(versions))
}

func (h *FilesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "file_id")
	if !ok {
		return
	}
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "Invalid request body", err)
		return
	}

	file, err := h.service.Rename(r.Context(), simplevault.RenameRequest{
		FileID:   fileID,
		NewName:  req.Name,
		CallerID: caller(r),
	})
	if err != nil {
		writeError(w, r, "Failed to rename file", err)
		return
	}
	render.JSON(w, r, file)
}

func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "file_id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), fileID, caller(r)); err != nil {
		writeError(w, r, "Failed to delete file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FilesHandler) Share(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "file_id")
	if !ok {
		return
	}
	var req ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "Invalid request body", err)
		return
	}
	target, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(w, r, "Invalid user ID", err)
		return
	}

	perm, err := h.service.Share(r.Context(), simplevault.ShareRequest{
		FileID:       fileID,
		CallerID:     caller(r),
		TargetUserID: target,
		Role:         simplevault.Role(req.Role),
	})
	if err != nil {
		writeError(w, r, "Failed to share file", err)
		return
	}
	render.JSON(w, r, perm)
}

func (h *FilesHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "file_id")
	if !ok {
		return
	}
	perms, err := h.service.ListPermissions(r.Context(), fileID, caller(r))
	if err != nil {
		writeError(w, r, "Failed to list permissions", err)
		return
	}
	render.JSON(w, r, nonNil(perms))
}

// pathID parses a UUID URL parameter, replying 400 when it is malformed
func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		badRequest(w, r, "Invalid "+param, err)
		return uuid.Nil, false
	}
	return id, true
}

// nonNil keeps empty lists encoding as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
