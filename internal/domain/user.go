package domain

import "time"

// DefaultStorageLimit задаёт квоту нового пользователя (5GB).
const DefaultStorageLimit int64 = 5 * 1024 * 1024 * 1024

// User создаётся при первом аутентифицированном запросе. StorageUsed меняется
// только через создание/удаление файлов и ночной пересчёт.
type User struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	FirstName       string    `json:"first_name" db:"first_name"`
	LastName        string    `json:"last_name" db:"last_name"`
	StorageUsed     int64     `json:"storage_used" db:"storage_used"`
	StorageLimit    int64     `json:"storage_limit" db:"storage_limit"`
	ProfileImageKey string    `json:"-" db:"profile_image_key"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ProfileImage возвращается после загрузки аватара.
type ProfileImage struct {
	ImageURL string `json:"image_url"`
}

// QuotaInfo содержит сводку по квоте для профиля.
type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}
