package domain

import (
	"time"

	"github.com/google/uuid"
)

// File хранит метаданные объекта; сами байты лежат в S3 под S3Key.
// Checksum содержит sha256 ровно тех байт, что записаны в S3.
type File struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	OriginalName  string     `json:"original_name" db:"original_name"`
	MIMEType      string     `json:"mime_type" db:"mime_type"`
	SizeBytes     int64      `json:"size_bytes" db:"size_bytes"`
	S3Key         string     `json:"-" db:"s3_key"`
	S3Bucket      string     `json:"-" db:"s3_bucket"`
	FolderID      *uuid.UUID `json:"folder_id,omitempty" db:"folder_id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	IsPublic      bool       `json:"is_public" db:"is_public"`
	DownloadCount int64      `json:"download_count" db:"download_count"`
	Version       int        `json:"version" db:"version"`
	Checksum      string     `json:"checksum" db:"checksum"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// FileUpdate задаёт частичное обновление; nil-поля не трогаются.
// MoveToRoot различает "folder_id не передан" и "folder_id = null".
type FileUpdate struct {
	Name       *string    `json:"name,omitempty"`
	FolderID   *uuid.UUID `json:"folder_id,omitempty"`
	MoveToRoot bool       `json:"move_to_root,omitempty"`
	IsPublic   *bool      `json:"is_public,omitempty"`
}

// FileDownload содержит подписанную ссылку на скачивание.
type FileDownload struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	MIMEType    string `json:"mime_type"`
}
