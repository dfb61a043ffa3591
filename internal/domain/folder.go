package domain

import (
	"time"

	"github.com/google/uuid"
)

// Folder представляет узел иерархии папок. Path всегда равен склейке имён предков
// от корня до самой папки ("/A/B") и пересчитывается при rename/move.
type Folder struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	OwnerID   string     `json:"owner_id" db:"owner_id"`
	IsPublic  bool       `json:"is_public" db:"is_public"`
	Color     *string    `json:"color,omitempty" db:"color"`
	Path      string     `json:"path" db:"path"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// FolderNode раскрывает папку с детьми рекурсивно.
type FolderNode struct {
	Folder
	Children []FolderNode `json:"children"`
}

// FolderContent держит один уровень раскрытия для UI.
type FolderContent struct {
	Folder  Folder   `json:"folder"`
	Folders []Folder `json:"subfolders"`
	Files   []File   `json:"files"`
}

// FolderUpdate задаёт частичное обновление; nil-поля не трогаются.
// MoveToRoot различает "parent_id не передан" и "parent_id = null".
type FolderUpdate struct {
	Name       *string    `json:"name,omitempty"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	MoveToRoot bool       `json:"move_to_root,omitempty"`
	Color      *string    `json:"color,omitempty"`
	IsPublic   *bool      `json:"is_public,omitempty"`
}
