// storage.go
package s3

import (
	"context"
	"io"
	"time"
)

// Object определяет интерфейс для читаемых объектов хранилища
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// object реализует интерфейс Object
type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем
type Storage interface {
	Bucket() string
	UploadBytes(ctx context.Context, key string, data []byte, mimeType string, metadata map[string]string) error
	GetObject(ctx context.Context, key string) (Object, error)
	DeleteObject(ctx context.Context, key string) error
	PresignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
