package domain

import (
	"time"

	"github.com/google/uuid"
)

type Permission string
type ResourceType string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"

	ResourceTypeFile   ResourceType = "file"
	ResourceTypeFolder ResourceType = "folder"
)

// Share представляет capability-токен на один ресурс. Токен непредсказуем (32 случайных
// байта в hex), пароль хранится только в виде bcrypt-хеша.
type Share struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	ResourceID   uuid.UUID    `json:"resource_id" db:"resource_id"`
	ResourceType ResourceType `json:"resource_type" db:"resource_type"`
	OwnerID      string       `json:"owner_id" db:"owner_id"`
	Token        string       `json:"token" db:"token"`
	Permission   Permission   `json:"permission" db:"permission"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	PasswordHash *string      `json:"-" db:"password_hash"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// IsPasswordProtected сообщает клиенту о защите, не раскрывая хеш.
func (s *Share) IsPasswordProtected() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// ShareWithResource дополняет ссылку именем ресурса для списка владельца.
type ShareWithResource struct {
	Share
	ResourceName string `json:"resource_name" db:"resource_name"`
}

// SharedResource возвращается при успешном резолве токена: ссылка плюс
// актуальное состояние ресурса (file или folder, ровно одно не nil).
type SharedResource struct {
	Share  Share   `json:"share"`
	File   *File   `json:"file,omitempty"`
	Folder *Folder `json:"folder,omitempty"`
}
