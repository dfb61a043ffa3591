package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

// maxFolderDepth ограничивает глубину подъёма по предкам. Страховка
// от зацикленных данных: дерево глубже просто не бывает.
const maxFolderDepth = 128

// FolderService управляет деревом папок. Материализованный путь папки
// всегда выводится из актуальной цепочки предков, а при переносе или
// переименовании репозиторий каскадно переписывает пути всего поддерева
// в одной транзакции.
type FolderService struct {
	folders FolderStore
	files   FileStore
}

func NewFolderService(folders FolderStore, files FileStore) *FolderService {
	return &FolderService{folders: folders, files: files}
}

func (s *FolderService) Create(ctx context.Context, ownerID, name string, parentID *uuid.UUID, color *string) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if err := validateFolderName(name); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.folders.GetByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
	}

	path, err := s.buildPath(ctx, parentID, name)
	if err != nil {
		return nil, err
	}

	folder := &domain.Folder{
		ID:       uuid.New(),
		Name:     name,
		ParentID: parentID,
		OwnerID:  ownerID,
		Path:     path,
	}
	if color != nil {
		folder.Color = color
	}

	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, err
	}

	log.Printf("[FolderService] Создана папка %s (%s)", folder.ID, folder.Path)
	return folder, nil
}

// Update переименовывает и/или переносит папку. Перенос папки в её
// собственное поддерево (или саму в себя) отклоняется до записи.
func (s *FolderService) Update(ctx context.Context, ownerID string, id uuid.UUID, upd domain.FolderUpdate) (*domain.Folder, error) {
	folder, err := s.folders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := validateFolderName(name); err != nil {
			return nil, err
		}
		folder.Name = name
	}
	if upd.Color != nil {
		folder.Color = upd.Color
	}
	if upd.IsPublic != nil {
		folder.IsPublic = *upd.IsPublic
	}

	// Определяем нового родителя
	newParentID := folder.ParentID
	if upd.MoveToRoot {
		newParentID = nil
	} else if upd.ParentID != nil {
		newParentID = upd.ParentID
	}

	if newParentID != nil {
		if *newParentID == folder.ID {
			return nil, domain.ErrFolderCycle
		}
		parent, err := s.folders.GetByID(ctx, *newParentID)
		if err != nil {
			return nil, err
		}
		if parent.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
		inSubtree, err := s.isDescendantOf(ctx, parent, folder.ID)
		if err != nil {
			return nil, err
		}
		if inSubtree {
			return nil, domain.ErrFolderCycle
		}
	}
	folder.ParentID = newParentID

	oldPath := folder.Path
	newPath, err := s.buildPath(ctx, folder.ParentID, folder.Name)
	if err != nil {
		return nil, err
	}
	folder.Path = newPath

	if err := s.folders.Update(ctx, folder, oldPath); err != nil {
		return nil, err
	}

	if oldPath != newPath {
		log.Printf("[FolderService] Папка %s перемещена: %s -> %s", folder.ID, oldPath, newPath)
	}
	return folder, nil
}

func (s *FolderService) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Folder, error) {
	folder, err := s.folders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != userID && !folder.IsPublic {
		return nil, domain.ErrForbidden
	}
	return folder, nil
}

func (s *FolderService) List(ctx context.Context, ownerID string, parentID *uuid.UUID) ([]domain.Folder, error) {
	return s.folders.ListByOwner(ctx, ownerID, parentID)
}

// Tree строит дерево папок владельца начиная с детей rootID, при
// nil от корня. Дерево собирается в памяти из одного запроса,
// посещённые вершины отслеживаются, так что цикл в данных не
// приводит к бесконечной рекурсии.
func (s *FolderService) Tree(ctx context.Context, ownerID string, rootID *uuid.UUID) ([]domain.FolderNode, error) {
	if rootID != nil {
		root, err := s.folders.GetByID(ctx, *rootID)
		if err != nil {
			return nil, err
		}
		if root.OwnerID != ownerID {
			return nil, domain.ErrForbidden
		}
	}

	all, err := s.folders.ListAllByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	children := make(map[uuid.UUID][]domain.Folder)
	var roots []domain.Folder
	for _, f := range all {
		if f.ParentID == nil {
			roots = append(roots, f)
			continue
		}
		children[*f.ParentID] = append(children[*f.ParentID], f)
	}

	var level []domain.Folder
	if rootID == nil {
		level = roots
	} else {
		level = children[*rootID]
	}

	visited := make(map[uuid.UUID]bool)
	if rootID != nil {
		visited[*rootID] = true
	}
	return s.buildNodes(level, children, visited, 0), nil
}

func (s *FolderService) buildNodes(level []domain.Folder, children map[uuid.UUID][]domain.Folder, visited map[uuid.UUID]bool, depth int) []domain.FolderNode {
	if depth > maxFolderDepth {
		return nil
	}
	nodes := make([]domain.FolderNode, 0, len(level))
	for _, f := range level {
		if visited[f.ID] {
			continue
		}
		visited[f.ID] = true
		nodes = append(nodes, domain.FolderNode{
			Folder:   f,
			Children: s.buildNodes(children[f.ID], children, visited, depth+1),
		})
	}
	return nodes
}

// Contents возвращает папку вместе с её подпапками и файлами.
// Публичная папка читается без владения.
func (s *FolderService) Contents(ctx context.Context, userID string, id uuid.UUID) (*domain.FolderContent, error) {
	folder, err := s.folders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != userID && !folder.IsPublic {
		return nil, domain.ErrForbidden
	}

	subfolders, err := s.folders.ListByOwner(ctx, folder.OwnerID, &folder.ID)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListFolderFiles(ctx, folder.ID, folder.OwnerID)
	if err != nil {
		return nil, err
	}

	return &domain.FolderContent{
		Folder:  *folder,
		Folders: subfolders,
		Files:   files,
	}, nil
}

// Delete удаляет пустую папку. Папка с подпапками или файлами не
// удаляется: сначала содержимое, потом контейнер.
func (s *FolderService) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	folder, err := s.folders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if folder.OwnerID != ownerID {
		return domain.ErrForbidden
	}

	count, err := s.folders.CountChildren(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrFolderNotEmpty
	}

	deleted, err := s.folders.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	log.Printf("[FolderService] Удалена папка %s (%s)", folder.ID, folder.Path)
	return nil
}

// buildPath собирает материализованный путь "/A/B/name" подъёмом по
// цепочке предков. Посещённые id запоминаются, глубина ограничена.
func (s *FolderService) buildPath(ctx context.Context, parentID *uuid.UUID, name string) (string, error) {
	segments := []string{name}
	visited := make(map[uuid.UUID]bool)

	current := parentID
	for current != nil {
		if visited[*current] || len(visited) > maxFolderDepth {
			return "", domain.ErrFolderCycle
		}
		visited[*current] = true

		parent, err := s.folders.GetByID(ctx, *current)
		if err != nil {
			return "", err
		}
		segments = append([]string{parent.Name}, segments...)
		current = parent.ParentID
	}

	return "/" + strings.Join(segments, "/"), nil
}

// isDescendantOf проверяет, лежит ли candidate в поддереве folderID.
func (s *FolderService) isDescendantOf(ctx context.Context, candidate *domain.Folder, folderID uuid.UUID) (bool, error) {
	visited := make(map[uuid.UUID]bool)

	current := candidate
	for {
		if current.ID == folderID {
			return true, nil
		}
		if current.ParentID == nil {
			return false, nil
		}
		if visited[current.ID] || len(visited) > maxFolderDepth {
			return false, domain.ErrFolderCycle
		}
		visited[current.ID] = true

		parent, err := s.folders.GetByID(ctx, *current.ParentID)
		if err != nil {
			return false, err
		}
		current = parent
	}
}

func validateFolderName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: folder name is required", domain.ErrValidation)
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: folder name contains forbidden characters", domain.ErrValidation)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: folder name is too long", domain.ErrValidation)
	}
	return nil
}
