package service

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service/s3"
)

// ArchiveService собирает zip-архивы: выгрузку папки с вложенным
// деревом и полную выгрузку данных пользователя. Планирование и запись
// разделены, чтобы ошибки доступа и пустоты всплывали до первого байта
// в ответе.
type ArchiveService struct {
	folders FolderStore
	files   FileStore
	shares  ShareStore
	users   UserStore
	storage s3.Storage
}

func NewArchiveService(folders FolderStore, files FileStore, shares ShareStore, users UserStore, storage s3.Storage) *ArchiveService {
	return &ArchiveService{
		folders: folders,
		files:   files,
		shares:  shares,
		users:   users,
		storage: storage,
	}
}

// Archive хранит спланированный архив; Write стримит его в writer.
type Archive struct {
	Name string

	entries  []archiveEntry
	manifest []byte
	storage  s3.Storage
}

type archiveEntry struct {
	path string
	file domain.File
}

// PlanFolderArchive обходит поддерево папки и планирует архив.
// Пути записей включают саму папку: архив папки A с файлом в B даёт
// запись "A/B/f1.txt". Папка без единого файла даёт ошибку до записи.
func (s *ArchiveService) PlanFolderArchive(ctx context.Context, ownerID string, folderID uuid.UUID) (*Archive, error) {
	root, err := s.folders.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if root.OwnerID != ownerID && !root.IsPublic {
		return nil, domain.ErrForbidden
	}

	files, folders, err := s.collectSubtree(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, domain.ErrEmptyArchive
	}

	archive := &Archive{
		Name:    root.Name + ".zip",
		storage: s.storage,
	}
	for _, file := range files {
		archive.entries = append(archive.entries, archiveEntry{
			path: buildEntryPath(file, folders),
			file: file,
		})
	}
	return archive, nil
}

// PlanUserArchive планирует полную выгрузку: profile-data.json с
// профилем, файлами, папками и ссылками плюс содержимое всех файлов
// под files/. Выгрузка без файлов всё равно валидна, манифест есть.
func (s *ArchiveService) PlanUserArchive(ctx context.Context, ownerID string) (*Archive, error) {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	folders, err := s.folders.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	shares, err := s.shares.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	manifest, err := json.MarshalIndent(map[string]any{
		"profile": user,
		"files":   files,
		"folders": folders,
		"shares":  shares,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export manifest: %w", err)
	}

	archive := &Archive{
		Name:     "user-data-export.zip",
		manifest: manifest,
		storage:  s.storage,
	}

	seen := make(map[string]int)
	for _, file := range files {
		path := "files/" + file.OriginalName
		if n := seen[path]; n > 0 {
			path = fmt.Sprintf("files/%d_%s", n, file.OriginalName)
		}
		seen["files/"+file.OriginalName]++
		archive.entries = append(archive.entries, archiveEntry{path: path, file: file})
	}
	return archive, nil
}

// Write стримит архив. Недоступный в хранилище файл пропускается
// с записью в лог, остальные файлы попадают в архив.
func (a *Archive) Write(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)

	if a.manifest != nil {
		entry, err := zw.Create("profile-data.json")
		if err != nil {
			return fmt.Errorf("failed to create manifest entry: %w", err)
		}
		if _, err := entry.Write(a.manifest); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	for _, e := range a.entries {
		obj, err := a.storage.GetObject(ctx, e.file.S3Key)
		if err != nil {
			log.Printf("[ArchiveService] Пропускаем файл %s (%s): %v", e.file.ID, e.path, err)
			continue
		}
		entry, err := zw.Create(e.path)
		if err != nil {
			obj.Close()
			return fmt.Errorf("failed to create archive entry %s: %w", e.path, err)
		}
		if _, err := io.Copy(entry, obj); err != nil {
			obj.Close()
			return fmt.Errorf("failed to write archive entry %s: %w", e.path, err)
		}
		obj.Close()
	}

	return zw.Close()
}

// collectSubtree собирает файлы поддерева и карту его папок, включая
// корневую. Поддерево приходит одним запросом.
func (s *ArchiveService) collectSubtree(ctx context.Context, root *domain.Folder) ([]domain.File, map[uuid.UUID]domain.Folder, error) {
	subtree, err := s.folders.ListSubtree(ctx, root.ID)
	if err != nil {
		return nil, nil, err
	}

	folders := map[uuid.UUID]domain.Folder{root.ID: *root}
	var files []domain.File

	for _, folder := range subtree {
		if folder.OwnerID != root.OwnerID {
			continue
		}
		folders[folder.ID] = folder

		folderFiles, err := s.files.ListFolderFiles(ctx, folder.ID, root.OwnerID)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, folderFiles...)
	}

	return files, folders, nil
}

// buildEntryPath строит путь записи от корня архива: имена папок по
// цепочке вверх, пока папка есть в собранной карте, затем имя файла.
func buildEntryPath(file domain.File, folders map[uuid.UUID]domain.Folder) string {
	segments := []string{file.OriginalName}
	visited := make(map[uuid.UUID]bool)

	current := file.FolderID
	for current != nil && !visited[*current] {
		visited[*current] = true
		folder, ok := folders[*current]
		if !ok {
			break
		}
		segments = append([]string{folder.Name}, segments...)
		current = folder.ParentID
	}

	return strings.Join(segments, "/")
}
