package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/xid"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/metrics"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
	"github.com/sakif/content-hub/internal/storage"
)

// DefaultMaxUploadBytes applies when FileService is built with a
// non-positive limit.
const DefaultMaxUploadBytes int64 = 16 << 20

// sniffLen is how many leading bytes are inspected to detect the MIME type.
const sniffLen = 3072

// allowedExtensions is the upload allow-list, matched case-insensitively on
// the last extension of the client's file name.
var allowedExtensions = map[string]struct{}{
	"txt":  {},
	"pdf":  {},
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"doc":  {},
	"docx": {},
	"xls":  {},
	"xlsx": {},
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileService stores uploads in a BlobStore and their metadata in the
// database.
//
// The blob is written first and the row second. When the row cannot be
// written the blob is removed again, so a failed upload leaves neither.
type FileService struct {
	files    repository.FileRepository
	contents repository.ContentRepository
	blobs    storage.BlobStore
	maxBytes int64
	logger   *slog.Logger
}

func NewFileService(
	files repository.FileRepository,
	contents repository.ContentRepository,
	blobs storage.BlobStore,
	maxBytes int64,
	logger *slog.Logger,
) *FileService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &FileService{
		files:    files,
		contents: contents,
		blobs:    blobs,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// MaxBytes is the largest accepted upload.
func (s *FileService) MaxBytes() int64 {
	return s.maxBytes
}

// UploadInput is one multipart file part. Size is the declared length of
// Body; ContentID optionally links the file to a content item.
type UploadInput struct {
	Filename  string
	Size      int64
	Body      io.Reader
	ContentID *string
}

func (s *FileService) Upload(ctx context.Context, userID string, in UploadInput) (*model.File, error) {
	file, err := s.upload(ctx, userID, in)
	switch {
	case err == nil:
		metrics.RecordUpload(metrics.OutcomeOK, file.FileSizeBytes)
	case errors.Is(err, apperror.ErrStorage):
		metrics.RecordUpload(metrics.OutcomeError, 0)
	default:
		metrics.RecordUpload(metrics.OutcomeRejected, 0)
	}
	return file, err
}

func (s *FileService) upload(ctx context.Context, userID string, in UploadInput) (*model.File, error) {
	if strings.TrimSpace(in.Filename) == "" {
		return nil, apperror.ValidationFailed("file", "no file selected for upload")
	}

	original := SanitizeFilename(in.Filename)
	ext, ok := allowedExtension(original)
	if !ok {
		return nil, apperror.ValidationFailed("file", "file type not allowed")
	}
	if in.Size > s.maxBytes {
		return nil, apperror.TooLarge(fmt.Sprintf("file exceeds the %d byte upload limit", s.maxBytes))
	}

	if in.ContentID != nil {
		if _, err := s.contents.GetContent(ctx, *in.ContentID); err != nil {
			return nil, err
		}
	}

	body, mimeType, err := sniff(in.Body)
	if err != nil {
		return nil, apperror.Storage("reading upload", err)
	}

	name := xid.New().String() + "." + ext
	if err := s.blobs.Put(ctx, name, body, in.Size, mimeType); err != nil {
		s.logger.Error("failed to store blob",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Storage("storing file", err)
	}

	file := &model.File{
		FileName:         name,
		OriginalFileName: original,
		FileType:         mimeType,
		FileSizeBytes:    in.Size,
		StoragePath:      name,
		ContentID:        in.ContentID,
		UserID:           userID,
	}
	if err := s.files.CreateFile(ctx, file); err != nil {
		// The request context may already be cancelled; cleanup must still run.
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), name); derr != nil {
			s.logger.Error("failed to remove orphaned blob",
				slog.String("name", name),
				slog.String("error", derr.Error()),
			)
		}
		return nil, writeFailed("recording file", err)
	}

	s.logger.Info("file uploaded",
		slog.String("id", file.ID),
		slog.String("name", name),
		slog.String("type", mimeType),
		slog.Int64("bytes", file.FileSizeBytes),
	)
	return file, nil
}

// Download returns the metadata and an open reader for the blob. The caller
// closes the reader.
//
// A missing row and a missing blob are both 404 but with different
// messages, so an operator can tell a bad id from lost storage.
func (s *FileService) Download(ctx context.Context, id string) (*model.File, io.ReadCloser, error) {
	file, err := s.Info(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, file.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			s.logger.Warn("file row has no blob",
				slog.String("id", file.ID),
				slog.String("name", file.StoragePath),
			)
			return nil, nil, apperror.NotFoundMessage("file content missing from storage")
		}
		return nil, nil, fmt.Errorf("opening blob %s: %w", file.StoragePath, err)
	}
	return file, rc, nil
}

// Info returns the metadata of a file without touching the blob.
func (s *FileService) Info(ctx context.Context, id string) (*model.File, error) {
	file, err := s.files.GetFile(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFoundMessage("file not found")
		}
		return nil, err
	}
	return file, nil
}

// SanitizeFilename reduces a client-supplied name to a safe base name:
// directories are dropped, runs of unsafe characters become "_" and leading
// dots or underscores are trimmed.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

func allowedExtension(name string) (string, bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 || dot == len(name)-1 {
		return "", false
	}
	ext := strings.ToLower(name[dot+1:])
	_, ok := allowedExtensions[ext]
	return ext, ok
}

// sniff detects the MIME type from the leading bytes and returns a reader
// that still yields the whole body.
func sniff(r io.Reader) (io.Reader, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), r), mimetype.Detect(head).String(), nil
}
