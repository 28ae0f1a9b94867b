package share

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tmpdrop/service/internal/config"
	"github.com/tmpdrop/service/internal/response"
)

// multipartOverhead pads the request-body cap: boundaries and part
// headers add a little on top of the file bytes.
const multipartOverhead = 1 << 20

// Handler holds HTTP handlers for upload and download endpoints.
type Handler struct {
	svc *Service
	cfg *config.Config
}

// NewHandler creates a new share Handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg}
}

// UploadResponse is the success body of POST /upload.
type UploadResponse struct {
	Success     bool   `json:"success"`
	Slug        string `json:"slug"`
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	DownloadURL string `json:"downloadUrl"`
	Message     string `json:"message"`
}

// TooLargeResponse tells the client the in-band path is closed and, when
// the file still fits under the hard cap, to retry via direct upload.
type TooLargeResponse struct {
	Error                 string `json:"error"`
	ShouldUseDirectUpload bool   `json:"shouldUseDirectUpload"`
	MaxSize               int64  `json:"maxSize"`
}

// PresignResponse is the success body of GET /upload.
type PresignResponse struct {
	SignedURL string `json:"signedUrl"`
	Path      string `json:"path"`
	Slug      string `json:"slug"`
	FileName  string `json:"fileName"`
	ExpiresIn int64  `json:"expiresIn"`
}

// MetadataRequest is the body of POST /upload/metadata.
type MetadataRequest struct {
	Slug     string `json:"slug"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// MetadataResponse is the success body of POST /upload/metadata.
type MetadataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Accepts a file through the server and returns a shareable download link. Files over the inline limit are rejected with 413 and shouldUseDirectUpload=true.
//	@Tags			upload
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"file to share"
//	@Success		200	{object}	UploadResponse
//	@Failure		400	{object}	response.ErrorBody
//	@Failure		413	{object}	TooLargeResponse
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	// Reject oversized requests on the declared length before reading
	// the body; the MaxBytesReader below backstops liars.
	if r.ContentLength > h.cfg.MaxInlineSize+multipartOverhead {
		h.tooLarge(w, r.ContentLength)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxInlineSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(w, r.ContentLength)
			return
		}
		response.BadRequest(w, "file required")
		return
	}
	defer file.Close()

	res, err := h.svc.Upload(r.Context(), UploadInput{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			h.tooLarge(w, header.Size)
		case errors.Is(err, ErrTypeNotAllowed):
			response.BadRequest(w, "file type not allowed")
		case errors.Is(err, ErrBadName), errors.Is(err, ErrBadRequest):
			response.BadRequest(w, "invalid file")
		default:
			response.Error(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	response.OK(w, UploadResponse{
		Success:     true,
		Slug:        res.Slug,
		FileName:    res.FileName,
		FileSize:    res.FileSize,
		DownloadURL: res.DownloadURL,
		Message:     "Upload successful",
	})
}

// PresignUpload godoc
//
//	@Summary		Request a direct-upload authorization
//	@Description	Issues a short-lived signed PUT URL so large files go straight to object storage. Finalize with POST /upload/metadata.
//	@Tags			upload
//	@Produce		json
//	@Param			fileName	query	string	true	"original file name"
//	@Param			fileSize	query	int		true	"file size in bytes"
//	@Success		200	{object}	PresignResponse
//	@Failure		400	{object}	response.ErrorBody
//	@Failure		413	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/upload [get]
func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("fileName")
	if fileName == "" {
		response.BadRequest(w, "fileName required")
		return
	}
	size, err := strconv.ParseInt(r.URL.Query().Get("fileSize"), 10, 64)
	if err != nil || size <= 0 {
		response.BadRequest(w, "fileSize required")
		return
	}

	res, err := h.svc.PresignUpload(r.Context(), fileName, size)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLarge):
			response.PayloadTooLarge(w, fmt.Sprintf("file exceeds the %d byte limit", h.cfg.MaxFileSize))
		case errors.Is(err, ErrBadName), errors.Is(err, ErrBadRequest):
			response.BadRequest(w, "invalid file name or size")
		default:
			response.Error(w, http.StatusInternalServerError, "failed to generate upload URL")
		}
		return
	}

	response.OK(w, PresignResponse{
		SignedURL: res.SignedURL,
		Path:      res.Path,
		Slug:      res.Slug,
		FileName:  res.FileName,
		ExpiresIn: res.ExpiresIn,
	})
}

// SaveMetadata godoc
//
//	@Summary		Finalize a direct upload
//	@Description	Writes the metadata record after the client transferred the file straight to storage.
//	@Tags			upload
//	@Accept			json
//	@Produce		json
//	@Param			body	body	MetadataRequest	true	"upload details"
//	@Success		200	{object}	MetadataResponse
//	@Failure		400	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/upload/metadata [post]
func (h *Handler) SaveMetadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if req.Slug == "" || req.FileName == "" {
		response.BadRequest(w, "slug and fileName required")
		return
	}

	err := h.svc.SaveMetadata(r.Context(), MetadataInput{
		Slug:     req.Slug,
		FileName: req.FileName,
		Size:     req.Size,
		Type:     req.Type,
	})
	if err != nil {
		if errors.Is(err, ErrBadName) || errors.Is(err, ErrBadRequest) {
			response.BadRequest(w, "invalid slug or file name")
			return
		}
		response.Error(w, http.StatusInternalServerError, "failed to save metadata")
		return
	}

	response.OK(w, MetadataResponse{Success: true, Message: "Metadata saved"})
}

// Download godoc
//
//	@Summary		Download a shared file
//	@Description	Streams the file for a slug with attachment disposition. Any resolution failure is reported as not found.
//	@Tags			download
//	@Produce		octet-stream
//	@Param			slug	path	string	true	"share slug"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	response.ErrorBody
//	@Router			/download/{slug} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sl := chi.URLParam(r, "slug")

	rc, obj, err := h.svc.Open(r.Context(), sl)
	if err != nil {
		response.NotFound(w, "File not found")
		return
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": obj.Name}))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}

	// Headers are out the door; a mid-stream failure can only cut the
	// connection short.
	_, _ = io.Copy(w, rc)
}

func (h *Handler) tooLarge(w http.ResponseWriter, size int64) {
	response.JSON(w, http.StatusRequestEntityTooLarge, TooLargeResponse{
		Error:                 "File too large for server processing",
		ShouldUseDirectUpload: size <= h.cfg.MaxFileSize,
		MaxSize:               h.cfg.MaxInlineSize,
	})
}
