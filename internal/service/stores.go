package service

import (
	"context"

	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
)

// Интерфейсы хранилищ, которые потребляют сервисы. Реализуются
// репозиториями из internal/repository, в тестах fake'ами в памяти.

type UserStore interface {
	GetOrCreate(ctx context.Context, identity auth.Identity) (*domain.User, error)
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*domain.User, error)
	SetProfileImage(ctx context.Context, userID, key string) (*domain.User, error)
	Reserve(ctx context.Context, ownerID string, deltaBytes int64) error
	Release(ctx context.Context, ownerID string, deltaBytes int64) error
	RecalculateUsedSpace(ctx context.Context, ownerID string) error
	RecalculateAll(ctx context.Context) (int64, error)
	Delete(ctx context.Context, userID string) error
}

type FolderStore interface {
	Create(ctx context.Context, folder *domain.Folder) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Folder, error)
	ListByOwner(ctx context.Context, ownerID string, parentID *uuid.UUID) ([]domain.Folder, error)
	ListAllByOwner(ctx context.Context, ownerID string) ([]domain.Folder, error)
	ListSubtree(ctx context.Context, rootID uuid.UUID) ([]domain.Folder, error)
	Update(ctx context.Context, folder *domain.Folder, oldPath string) error
	CountChildren(ctx context.Context, id uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type FileStore interface {
	Create(ctx context.Context, file *domain.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error)
	ListByOwner(ctx context.Context, ownerID string, folderID *uuid.UUID) ([]domain.File, error)
	ListFolderFiles(ctx context.Context, folderID uuid.UUID, ownerID string) ([]domain.File, error)
	ListAllByOwner(ctx context.Context, ownerID string) ([]domain.File, error)
	Search(ctx context.Context, ownerID, term string) ([]domain.File, error)
	Update(ctx context.Context, file *domain.File) error
	IncrementDownloadCount(ctx context.Context, id uuid.UUID)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type ShareStore interface {
	Create(ctx context.Context, share *domain.Share) error
	GetByToken(ctx context.Context, token string) (*domain.Share, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Share, error)
	ListByOwner(ctx context.Context, ownerID string, resourceType *domain.ResourceType) ([]domain.ShareWithResource, error)
	ListAllByOwner(ctx context.Context, ownerID string) ([]domain.Share, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
}
