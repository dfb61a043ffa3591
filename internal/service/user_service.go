package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service/s3"
)

const (
	maxProfileImageBytes = 5 << 20
	profileImageURLTTL   = 7 * 24 * time.Hour
)

// UserService управляет профилем и жизненным циклом учётной записи.
// Запись пользователя заводится лениво при первом аутентифицированном
// запросе.
type UserService struct {
	users   UserStore
	files   FileStore
	storage s3.Storage
	clock   Clock
}

func NewUserService(users UserStore, files FileStore, storage s3.Storage, clock Clock) *UserService {
	return &UserService{users: users, files: files, storage: storage, clock: clock}
}

// Profile возвращает профиль, создавая запись при первом обращении.
func (s *UserService) Profile(ctx context.Context, identity auth.Identity) (*domain.User, error) {
	return s.users.GetOrCreate(ctx, identity)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*domain.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" && lastName == "" {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	return s.users.UpdateProfile(ctx, userID, firstName, lastName)
}

// ProfileImageUpload описывает загружаемый аватар.
type ProfileImageUpload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// UploadProfileImage сохраняет аватар в S3 и выдаёт подписанную ссылку.
// Предыдущий аватар удаляется по мере возможности.
func (s *UserService) UploadProfileImage(ctx context.Context, userID string, in ProfileImageUpload) (*domain.ProfileImage, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: image file is required", domain.ErrValidation)
	}
	if !strings.HasPrefix(in.MIMEType, "image/") {
		return nil, fmt.Errorf("%w: only image files are allowed", domain.ErrValidation)
	}
	if int64(len(in.Data)) > maxProfileImageBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, maxProfileImageBytes)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := buildProfileImageKey(userID, in.Name, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"user_id": userID}
	if err := s.storage.UploadBytes(ctx, key, in.Data, in.MIMEType, metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	if _, err := s.users.SetProfileImage(ctx, userID, key); err != nil {
		if delErr := s.storage.DeleteObject(ctx, key); delErr != nil {
			log.Printf("[UserService] Не удалось удалить осиротевший аватар %s: %v", key, delErr)
		}
		return nil, err
	}

	if user.ProfileImageKey != "" {
		if err := s.storage.DeleteObject(ctx, user.ProfileImageKey); err != nil {
			log.Printf("[UserService] Не удалось удалить старый аватар %s: %v", user.ProfileImageKey, err)
		}
	}

	url, err := s.storage.PresignedReadURL(ctx, key, profileImageURLTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	log.Printf("[UserService] Обновлён аватар пользователя %s", userID)
	return &domain.ProfileImage{ImageURL: url}, nil
}

func buildProfileImageKey(userID, name string, now time.Time) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate image key: %w", err)
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("profile-images/%s/%d-%s%s", userID, now.UnixMilli(), hex.EncodeToString(buf), ext), nil
}

// DeleteAccount удаляет учётную запись со всеми данными. Блобы
// удаляются по мере возможности, недоступные остаются на ручную
// зачистку; строки каталога уходят каскадом вместе с пользователем.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	files, err := s.files.ListAllByOwner(ctx, userID)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := s.storage.DeleteObject(ctx, file.S3Key); err != nil {
			log.Printf("[UserService] Не удалось удалить объект %s при удалении аккаунта %s: %v", file.S3Key, userID, err)
		}
	}

	if user, err := s.users.GetByID(ctx, userID); err == nil && user.ProfileImageKey != "" {
		if err := s.storage.DeleteObject(ctx, user.ProfileImageKey); err != nil {
			log.Printf("[UserService] Не удалось удалить аватар %s при удалении аккаунта %s: %v", user.ProfileImageKey, userID, err)
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	log.Printf("[UserService] Удалена учётная запись %s (%d файлов)", userID, len(files))
	return nil
}
