package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/service"
)

// multipartOverhead is room for part headers and the content_id field on
// top of the file itself.
const multipartOverhead = 1 << 20

// multipartMemory is how much of the form ParseMultipartForm keeps in
// memory; larger files spill to temporary files.
const multipartMemory = 8 << 20

// FileHandler serves uploads, downloads and file metadata. All routes
// require authentication.
type FileHandler struct {
	files  *service.FileService
	logger *slog.Logger
}

func NewFileHandler(files *service.FileService, logger *slog.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

// fileInfo is a file row plus the path that streams it back.
type fileInfo struct {
	*model.File
	DownloadURL string `json:"download_url"`
}

func newFileInfo(f *model.File) fileInfo {
	return fileInfo{File: f, DownloadURL: f.DownloadURL()}
}

type uploadResponse struct {
	Msg      string   `json:"msg"`
	FileInfo fileInfo `json:"file_info"`
}

// HandleUpload stores one uploaded file.
//
// HTTP: POST /files/upload
// BODY: multipart/form-data with part "file" and optional field "content_id"
func (h *FileHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxBytes()+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			writeError(w, apperror.TooLarge("upload exceeds the "+strconv.FormatInt(h.files.MaxBytes(), 10)+" byte limit"))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "request must be multipart/form-data with a \"file\" part"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", slog.String("error", err.Error()))
		}
	}()

	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperror.ValidationFailed("file", "no file part in the request"))
		return
	}
	defer part.Close()

	in := service.UploadInput{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     part,
	}
	if cid := r.FormValue("content_id"); cid != "" {
		in.ContentID = &cid
	}

	file, err := h.files.Upload(r.Context(), uid, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Msg: "file uploaded", FileInfo: newFileInfo(file)})
}

// HandleDownload streams the blob back under its original name.
//
// HTTP: GET /files/download/{id}
func (h *FileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	file, rc, err := h.files.Download(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", file.FileType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalFileName}))
	w.Header().Set("Content-Length", strconv.FormatInt(file.FileSizeBytes, 10))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Status is already sent; the client sees a truncated body.
		h.logger.Error("download interrupted",
			slog.String("id", file.ID),
			slog.String("error", err.Error()),
		)
	}
}

// HandleInfo returns file metadata with its download_url.
//
// HTTP: GET /files/{id}/info
func (h *FileHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	file, err := h.files.Info(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileInfo(file))
}
