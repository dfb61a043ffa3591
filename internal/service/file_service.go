package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/config"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service/s3"
)

// FileUpload описывает загружаемый файл.
type FileUpload struct {
	Name     string
	MIMEType string
	FolderID *uuid.UUID
	Data     []byte
}

// FileService управляет каталогом файлов: метаданные в Postgres,
// содержимое в S3. Квота резервируется до записи блоба, при сбое
// записи метаданных блоб и резерв откатываются.
type FileService struct {
	files   FileStore
	folders FolderStore
	quota   *QuotaService
	storage s3.Storage
	upload  *config.UploadConfig
	clock   Clock
}

func NewFileService(files FileStore, folders FolderStore, quota *QuotaService, storage s3.Storage, upload *config.UploadConfig, clock Clock) *FileService {
	return &FileService{
		files:   files,
		folders: folders,
		quota:   quota,
		storage: storage,
		upload:  upload,
		clock:   clock,
	}
}

func (s *FileService) Upload(ctx context.Context, ownerID string, in FileUpload) (*domain.File, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	size := int64(len(in.Data))
	if size == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrValidation)
	}
	if size > s.upload.MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, s.upload.MaxFileSizeBytes)
	}
	if !s.upload.MIMEAllowed(in.MIMEType) {
		return nil, fmt.Errorf("%w: mime type %q is not allowed", domain.ErrValidation, in.MIMEType)
	}

	if in.FolderID != nil {
		folder, err := s.folders.GetByID(ctx, *in.FolderID)
		if err != nil {
			return nil, err
		}
		if folder.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
	}

	// Резервируем квоту до записи блоба: при нехватке места байты
	// в хранилище не едут вообще.
	if err := s.quota.Reserve(ctx, ownerID, size); err != nil {
		return nil, err
	}

	checksum := sha256.Sum256(in.Data)
	key, err := buildObjectKey(ownerID, name, s.clock.Now())
	if err != nil {
		s.rollbackQuota(ctx, ownerID, size)
		return nil, err
	}

	metadata := map[string]string{
		"user_id":       ownerID,
		"original_name": name,
		"checksum":      hex.EncodeToString(checksum[:]),
	}
	if err := s.storage.UploadBytes(ctx, key, in.Data, in.MIMEType, metadata); err != nil {
		s.rollbackQuota(ctx, ownerID, size)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	file := &domain.File{
		ID:           uuid.New(),
		Name:         name,
		OriginalName: name,
		MIMEType:     in.MIMEType,
		SizeBytes:    size,
		S3Key:        key,
		S3Bucket:     s.storage.Bucket(),
		FolderID:     in.FolderID,
		OwnerID:      ownerID,
		Checksum:     hex.EncodeToString(checksum[:]),
	}
	if err := s.files.Create(ctx, file); err != nil {
		// Компенсация: блоб уже в S3, запись не состоялась
		if delErr := s.storage.DeleteObject(ctx, key); delErr != nil {
			log.Printf("[FileService] Не удалось удалить осиротевший объект %s: %v", key, delErr)
		}
		s.rollbackQuota(ctx, ownerID, size)
		return nil, err
	}

	log.Printf("[FileService] Загружен файл %s (%s, %d байт)", file.ID, file.Name, size)
	return file, nil
}

func (s *FileService) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.File, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != userID && !file.IsPublic {
		return nil, domain.ErrForbidden
	}
	return file, nil
}

func (s *FileService) List(ctx context.Context, ownerID string, folderID *uuid.UUID) ([]domain.File, error) {
	return s.files.ListByOwner(ctx, ownerID, folderID)
}

// Search ищет по имени, исходному имени и MIME-типу.
func (s *FileService) Search(ctx context.Context, ownerID, term string) ([]domain.File, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrValidation)
	}
	return s.files.Search(ctx, ownerID, term)
}

// Download выдаёт подписанную ссылку на скачивание. Счётчик скачиваний
// увеличивается по пути, его сбой на ответ не влияет.
func (s *FileService) Download(ctx context.Context, userID string, id uuid.UUID) (*domain.FileDownload, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != userID && !file.IsPublic {
		return nil, domain.ErrForbidden
	}

	ttl := time.Duration(s.upload.PresignTTLSeconds) * time.Second
	url, err := s.storage.PresignedReadURL(ctx, file.S3Key, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	s.files.IncrementDownloadCount(ctx, file.ID)

	return &domain.FileDownload{
		DownloadURL: url,
		FileName:    file.OriginalName,
		MIMEType:    file.MIMEType,
	}, nil
}

// Update меняет имя, папку и видимость файла.
func (s *FileService) Update(ctx context.Context, ownerID string, id uuid.UUID, upd domain.FileUpdate) (*domain.File, error) {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
		}
		file.Name = name
	}
	if upd.MoveToRoot {
		file.FolderID = nil
	} else if upd.FolderID != nil {
		folder, err := s.folders.GetByID(ctx, *upd.FolderID)
		if err != nil {
			return nil, err
		}
		if folder.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
		file.FolderID = upd.FolderID
	}
	if upd.IsPublic != nil {
		file.IsPublic = *upd.IsPublic
	}

	if err := s.files.Update(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// Delete удаляет блоб и запись и возвращает место в квоту.
// Квота кредитуется только если запись действительно удалена.
func (s *FileService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return domain.ErrForbidden
	}

	if err := s.storage.DeleteObject(ctx, file.S3Key); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}

	deleted, err := s.files.Delete(ctx, id)
	if err != nil {
		return err
	}
	if deleted {
		if err := s.quota.Release(ctx, ownerID, file.SizeBytes); err != nil {
			log.Printf("[FileService] Не удалось вернуть %d байт квоты пользователю %s: %v", file.SizeBytes, ownerID, err)
		}
	}

	log.Printf("[FileService] Удалён файл %s (%s)", file.ID, file.Name)
	return nil
}

func (s *FileService) rollbackQuota(ctx context.Context, ownerID string, size int64) {
	if err := s.quota.Release(ctx, ownerID, size); err != nil {
		log.Printf("[FileService] Не удалось откатить резерв %d байт пользователя %s: %v", size, ownerID, err)
	}
}

// buildObjectKey генерирует уникальный ключ объекта вида
// uploads/{owner}/{timestamp}-{random}{ext}.
func buildObjectKey(ownerID, name string, now time.Time) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("uploads/%s/%d-%s%s", ownerID, now.UnixMilli(), hex.EncodeToString(buf), ext), nil
}
