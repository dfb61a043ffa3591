package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
        INSERT INTO shares (
            id, resource_id, resource_type, owner_id, token,
            permission, expires_at, password_hash
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		share.ID,
		share.ResourceID,
		share.ResourceType,
		share.OwnerID,
		share.Token,
		share.Permission,
		share.ExpiresAt,
		share.PasswordHash,
	).Scan(&share.CreatedAt, &share.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share: %w", err)
	}

	return nil
}

// GetByToken отдаёт ссылку и по истёкшему сроку: решение Expired/валидна
// принимает сервис, строка при этом остаётся в базе.
func (r *ShareRepository) GetByToken(ctx context.Context, token string) (*domain.Share, error) {
	var share domain.Share
	err := r.db.GetContext(ctx, &share, `SELECT * FROM shares WHERE token = $1`, token)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share by token: %w", err)
	}
	return &share, nil
}

func (r *ShareRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Share, error) {
	var share domain.Share
	err := r.db.GetContext(ctx, &share, `SELECT * FROM shares WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	return &share, nil
}

// ListByOwner возвращает ссылки владельца с именем ресурса для отображения.
func (r *ShareRepository) ListByOwner(ctx context.Context, ownerID string, resourceType *domain.ResourceType) ([]domain.ShareWithResource, error) {
	query := `
        SELECT s.*,
               COALESCE(
                   CASE
                       WHEN s.resource_type = 'file' THEN f.original_name
                       WHEN s.resource_type = 'folder' THEN fo.name
                   END, ''
               ) AS resource_name
        FROM shares s
        LEFT JOIN files f ON s.resource_type = 'file' AND s.resource_id = f.id
        LEFT JOIN folders fo ON s.resource_type = 'folder' AND s.resource_id = fo.id
        WHERE s.owner_id = $1`

	args := []interface{}{ownerID}
	if resourceType != nil {
		query += ` AND s.resource_type = $2`
		args = append(args, *resourceType)
	}
	query += ` ORDER BY s.created_at DESC`

	var shares []domain.ShareWithResource
	if err := r.db.SelectContext(ctx, &shares, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	return shares, nil
}

func (r *ShareRepository) ListAllByOwner(ctx context.Context, ownerID string) ([]domain.Share, error) {
	var shares []domain.Share
	err := r.db.SelectContext(ctx, &shares, `
        SELECT * FROM shares
        WHERE owner_id = $1
        ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user shares: %w", err)
	}
	return shares, nil
}

// Delete удаляет ссылку только её владельцу.
func (r *ShareRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM shares WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}
