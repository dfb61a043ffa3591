package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"nimbusdrive/internal/domain"
)

// Длина токена до hex-кодирования; в ссылке выходит 64 символа.
const shareTokenBytes = 32

// ShareCreate описывает публикуемый ресурс.
type ShareCreate struct {
	ResourceID   uuid.UUID
	ResourceType domain.ResourceType
	Permission   domain.Permission
	ExpiresAt    *time.Time
	Password     string
}

// ShareService управляет публичными ссылками на файлы и папки.
// Токен служит единственным ключом доступа; срок действия и пароль
// проверяются при каждом разрешении токена.
type ShareService struct {
	shares  ShareStore
	files   FileStore
	folders FolderStore
	clock   Clock
}

func NewShareService(shares ShareStore, files FileStore, folders FolderStore, clock Clock) *ShareService {
	return &ShareService{
		shares:  shares,
		files:   files,
		folders: folders,
		clock:   clock,
	}
}

// Create публикует ресурс. Владение проверяется по живой записи
// ресурса, токен генерируется криптографическим генератором.
func (s *ShareService) Create(ctx context.Context, ownerID string, in ShareCreate) (*domain.Share, error) {
	switch in.ResourceType {
	case domain.ResourceTypeFile, domain.ResourceTypeFolder:
	default:
		return nil, fmt.Errorf("%w: unknown resource type %q", domain.ErrValidation, in.ResourceType)
	}
	switch in.Permission {
	case "":
		in.Permission = domain.PermissionRead
	case domain.PermissionRead, domain.PermissionWrite:
	default:
		return nil, fmt.Errorf("%w: unknown permission %q", domain.ErrValidation, in.Permission)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: expiry must be in the future", domain.ErrValidation)
	}

	if err := s.verifyOwnership(ctx, ownerID, in.ResourceID, in.ResourceType); err != nil {
		return nil, err
	}

	token, err := generateShareToken()
	if err != nil {
		return nil, err
	}

	share := &domain.Share{
		ID:           uuid.New(),
		ResourceID:   in.ResourceID,
		ResourceType: in.ResourceType,
		OwnerID:      ownerID,
		Token:        token,
		Permission:   in.Permission,
		ExpiresAt:    in.ExpiresAt,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		hashed := string(hash)
		share.PasswordHash = &hashed
	}

	if err := s.shares.Create(ctx, share); err != nil {
		return nil, err
	}

	log.Printf("[ShareService] Создана ссылка %s на %s %s", share.ID, share.ResourceType, share.ResourceID)
	return share, nil
}

// Resolve разрешает токен в ресурс. Порядок проверок фиксированный:
// существование, срок действия, пароль, затем живой ресурс.
func (s *ShareService) Resolve(ctx context.Context, token, password string) (*domain.SharedResource, error) {
	share, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if share.ExpiresAt != nil && s.clock.Now().After(*share.ExpiresAt) {
		return nil, domain.ErrShareExpired
	}

	if share.IsPasswordProtected() {
		if password == "" {
			return nil, domain.ErrSharePasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*share.PasswordHash), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return nil, domain.ErrSharePasswordInvalid
			}
			return nil, fmt.Errorf("failed to verify share password: %w", err)
		}
	}

	resolved := &domain.SharedResource{Share: *share}
	switch share.ResourceType {
	case domain.ResourceTypeFile:
		file, err := s.files.GetByID(ctx, share.ResourceID)
		if err != nil {
			return nil, err
		}
		resolved.File = file
	case domain.ResourceTypeFolder:
		folder, err := s.folders.GetByID(ctx, share.ResourceID)
		if err != nil {
			return nil, err
		}
		resolved.Folder = folder
	default:
		return nil, fmt.Errorf("share %s has unknown resource type %q", share.ID, share.ResourceType)
	}

	return resolved, nil
}

// List возвращает ссылки владельца, опционально по типу ресурса.
func (s *ShareService) List(ctx context.Context, ownerID string, resourceType *domain.ResourceType) ([]domain.ShareWithResource, error) {
	return s.shares.ListByOwner(ctx, ownerID, resourceType)
}

// Delete отзывает ссылку. Отозванный токен перестаёт разрешаться сразу.
func (s *ShareService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if err := s.shares.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	log.Printf("[ShareService] Отозвана ссылка %s", id)
	return nil
}

func (s *ShareService) verifyOwnership(ctx context.Context, ownerID string, resourceID uuid.UUID, resourceType domain.ResourceType) error {
	switch resourceType {
	case domain.ResourceTypeFile:
		file, err := s.files.GetByID(ctx, resourceID)
		if err != nil {
			return err
		}
		if file.OwnerID != ownerID {
			return domain.ErrForbidden
		}
	case domain.ResourceTypeFolder:
		folder, err := s.folders.GetByID(ctx, resourceID)
		if err != nil {
			return err
		}
		if folder.OwnerID != ownerID {
			return domain.ErrForbidden
		}
	}
	return nil
}

func generateShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
