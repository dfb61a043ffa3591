package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	query := `
        INSERT INTO folders (id, name, parent_id, owner_id, is_public, color, path)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		folder.ID,
		folder.Name,
		folder.ParentID,
		folder.OwnerID,
		folder.IsPublic,
		folder.Color,
		folder.Path,
	).Scan(&folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Folder, error) {
	var folder domain.Folder
	err := r.db.GetContext(ctx, &folder, `SELECT * FROM folders WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &folder, nil
}

// ListByOwner возвращает папки одного уровня. parentID == nil означает
// корневой уровень (parent_id IS NULL), а не всё поддерево.
func (r *FolderRepository) ListByOwner(ctx context.Context, ownerID string, parentID *uuid.UUID) ([]domain.Folder, error) {
	var (
		folders []domain.Folder
		err     error
	)

	if parentID == nil {
		err = r.db.SelectContext(ctx, &folders, `
            SELECT * FROM folders
            WHERE owner_id = $1 AND parent_id IS NULL
            ORDER BY name ASC`, ownerID)
	} else {
		err = r.db.SelectContext(ctx, &folders, `
            SELECT * FROM folders
            WHERE owner_id = $1 AND parent_id = $2
            ORDER BY name ASC`, ownerID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// Update записывает папку и, если путь изменился, в той же транзакции
// переписывает пути всего поддерева, чтобы конкурентный читатель не
// увидел наполовину обновлённое дерево.
func (r *FolderRepository) Update(ctx context.Context, folder *domain.Folder, oldPath string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        UPDATE folders
        SET name = $1, parent_id = $2, is_public = $3, color = $4, path = $5,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $6
        RETURNING updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		folder.Name,
		folder.ParentID,
		folder.IsPublic,
		folder.Color,
		folder.Path,
		folder.ID,
	).Scan(&folder.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update folder: %w", err)
	}

	if oldPath != folder.Path {
		// Сравниваем точный префикс "oldPath/" через left(), а не LIKE:
		// в именах папок допустимы '%' и '_', и как метасимволы шаблона
		// они зацепили бы чужие поддеревья.
		cascade := `
            UPDATE folders
            SET path = $3 || substring(path FROM char_length($2::text) + 1),
                updated_at = CURRENT_TIMESTAMP
            WHERE owner_id = $1
              AND left(path, char_length($2::text) + 1) = $2 || '/'`

		if _, err := tx.ExecContext(ctx, cascade, folder.OwnerID, oldPath, folder.Path); err != nil {
			return fmt.Errorf("failed to update subtree paths: %w", err)
		}
	}

	return tx.Commit()
}

// CountChildren считает прямых детей папки (для политики отказа
// в удалении непустых папок).
func (r *FolderRepository) CountChildren(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	query := `
        SELECT (SELECT COUNT(*) FROM folders WHERE parent_id = $1)
             + (SELECT COUNT(*) FROM files WHERE folder_id = $1)`

	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("failed to count folder children: %w", err)
	}
	return count, nil
}

func (r *FolderRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete folder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

// ListSubtree возвращает папку и всех её потомков рекурсивным CTE,
// отсортированными по пути. Используется для выгрузки структуры.
func (r *FolderRepository) ListSubtree(ctx context.Context, rootID uuid.UUID) ([]domain.Folder, error) {
	query := `
        WITH RECURSIVE subtree AS (
            SELECT * FROM folders WHERE id = $1

            UNION ALL

            SELECT f.*
            FROM folders f
            INNER JOIN subtree s ON f.parent_id = s.id
        )
        SELECT * FROM subtree ORDER BY path`

	var folders []domain.Folder
	if err := r.db.SelectContext(ctx, &folders, query, rootID); err != nil {
		return nil, fmt.Errorf("failed to list folder subtree: %w", err)
	}
	return folders, nil
}

func (r *FolderRepository) ListAllByOwner(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	var folders []domain.Folder
	err := r.db.SelectContext(ctx, &folders, `
        SELECT * FROM folders
        WHERE owner_id = $1
        ORDER BY path`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user folders: %w", err)
	}
	return folders, nil
}
