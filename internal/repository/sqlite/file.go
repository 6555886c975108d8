package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/repository"
)

var _ repository.FileRepository = (*DB)(nil)

const fileColumns = `id, file_name, original_file_name, file_type, file_size_bytes, storage_path, content_id, user_id, uploaded_at, updated_at`

// CreateFile records the metadata of a blob that has already been stored.
// The caller sets ID so the blob and the row share it.
func (db *DB) CreateFile(ctx context.Context, file *model.File) error {
	if file.ID == "" {
		file.ID = newID()
	}
	ts := now()
	file.UploadedAt = ts
	file.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ID,
		file.FileName,
		file.OriginalFileName,
		file.FileType,
		file.FileSizeBytes,
		file.StoragePath,
		nullString(file.ContentID),
		file.UserID,
		file.UploadedAt,
		file.UpdatedAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return apperror.Conflict("file", "storage_path", file.StoragePath)
		case isForeignKeyViolation(err) && file.ContentID != nil:
			return apperror.NotFound("content", *file.ContentID)
		}
		return fmt.Errorf("sqlite: creating file %q: %w", file.OriginalFileName, err)
	}
	return nil
}

func (db *DB) GetFile(ctx context.Context, id string) (*model.File, error) {
	var (
		f         model.File
		contentID sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = ?`, id,
	).Scan(
		&f.ID,
		&f.FileName,
		&f.OriginalFileName,
		&f.FileType,
		&f.FileSizeBytes,
		&f.StoragePath,
		&contentID,
		&f.UserID,
		&f.UploadedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("file", id)
		}
		return nil, fmt.Errorf("sqlite: getting file %s: %w", id, err)
	}
	f.ContentID = stringPtr(contentID)
	return &f, nil
}
