package model

import "time"

// File is the metadata row for an uploaded blob. The blob itself lives in a
// storage.BlobStore under StoragePath.
type File struct {
	ID               string    `json:"id"`
	FileName         string    `json:"file_name_server"`
	OriginalFileName string    `json:"original_file_name"`
	FileType         string    `json:"file_type"`
	FileSizeBytes    int64     `json:"file_size_bytes"`
	StoragePath      string    `json:"-"`
	ContentID        *string   `json:"content_id"`
	UserID           string    `json:"user_id"`
	UploadedAt       time.Time `json:"uploaded_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DownloadURL is the API path that streams this file back.
func (f *File) DownloadURL() string {
	return "/files/download/" + f.ID
}
