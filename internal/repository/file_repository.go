package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `
        INSERT INTO files (
            id, name, original_name, mime_type, size_bytes, s3_key, s3_bucket,
            folder_id, owner_id, is_public, checksum
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING download_count, version, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.ID,
		file.Name,
		file.OriginalName,
		file.MIMEType,
		file.SizeBytes,
		file.S3Key,
		file.S3Bucket,
		file.FolderID,
		file.OwnerID,
		file.IsPublic,
		file.Checksum,
	).Scan(&file.DownloadCount, &file.Version, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.File, error) {
	var file domain.File
	err := r.db.GetContext(ctx, &file, `SELECT * FROM files WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

// ListByOwner возвращает файлы одного уровня. folderID == nil означает
// файлы корневого уровня (folder_id IS NULL).
func (r *FileRepository) ListByOwner(ctx context.Context, ownerID string, folderID *uuid.UUID) ([]domain.File, error) {
	var (
		files []domain.File
		err   error
	)

	if folderID == nil {
		err = r.db.SelectContext(ctx, &files, `
            SELECT * FROM files
            WHERE owner_id = $1 AND folder_id IS NULL
            ORDER BY created_at DESC`, ownerID)
	} else {
		err = r.db.SelectContext(ctx, &files, `
            SELECT * FROM files
            WHERE owner_id = $1 AND folder_id = $2
            ORDER BY created_at DESC`, ownerID, *folderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// Search ищет без учёта регистра по имени, исходному имени и MIME-типу.
func (r *FileRepository) Search(ctx context.Context, ownerID, term string) ([]domain.File, error) {
	query := `
        SELECT * FROM files
        WHERE owner_id = $1
        AND (name ILIKE $2 OR original_name ILIKE $2 OR mime_type ILIKE $2)
        ORDER BY created_at DESC`

	var files []domain.File
	err := r.db.SelectContext(ctx, &files, query, ownerID, "%"+term+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return files, nil
}

// ListFolderFiles возвращает файлы конкретной папки; владение
// проверяет сервис.
func (r *FileRepository) ListFolderFiles(ctx context.Context, folderID uuid.UUID, ownerID string) ([]domain.File, error) {
	var files []domain.File
	err := r.db.SelectContext(ctx, &files, `
        SELECT * FROM files
        WHERE folder_id = $1 AND owner_id = $2
        ORDER BY name ASC`, folderID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder files: %w", err)
	}
	return files, nil
}

func (r *FileRepository) ListAllByOwner(ctx context.Context, ownerID string) ([]domain.File, error) {
	var files []domain.File
	err := r.db.SelectContext(ctx, &files, `
        SELECT * FROM files
        WHERE owner_id = $1
        ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user files: %w", err)
	}
	return files, nil
}

func (r *FileRepository) Update(ctx context.Context, file *domain.File) error {
	query := `
        UPDATE files
        SET name = $1, folder_id = $2, is_public = $3, updated_at = CURRENT_TIMESTAMP
        WHERE id = $4
        RETURNING updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		file.Name,
		file.FolderID,
		file.IsPublic,
		file.ID,
	).Scan(&file.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update file: %w", err)
	}

	return nil
}

// IncrementDownloadCount работает как fire-and-forget: ошибка
// логируется, выдача ссылки на скачивание от неё не зависит.
func (r *FileRepository) IncrementDownloadCount(ctx context.Context, id uuid.UUID) {
	query := `UPDATE files SET download_count = download_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		log.Printf("[FileRepository] Не удалось увеличить счётчик скачиваний %s: %v", id, err)
	}
}

// Delete сообщает, была ли строка действительно удалена.
func (r *FileRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}
