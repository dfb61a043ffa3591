package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate возвращает пользователя, создавая запись с дефолтной квотой
// при первом аутентифицированном запросе.
func (r *UserRepository) GetOrCreate(ctx context.Context, identity auth.Identity) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user,
		`SELECT * FROM users WHERE id = $1`, identity.SubjectID)
	if err == nil {
		return &user, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	query := `
        INSERT INTO users (id, email, first_name, last_name, storage_used, storage_limit, is_active)
        VALUES ($1, $2, $3, $4, 0, $5, TRUE)
        ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
        RETURNING *`

	err = r.db.GetContext(ctx, &user, query,
		identity.SubjectID,
		identity.Email,
		identity.FirstName,
		identity.LastName,
		domain.DefaultStorageLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[UserRepository] Создан пользователь %s с квотой %d байт", user.ID, user.StorageLimit)
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*domain.User, error) {
	query := `
        UPDATE users
        SET first_name = $1, last_name = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $3
        RETURNING *`

	var user domain.User
	err := r.db.GetContext(ctx, &user, query, firstName, lastName, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) SetProfileImage(ctx context.Context, userID, key string) (*domain.User, error) {
	query := `
        UPDATE users
        SET profile_image_key = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
        RETURNING *`

	var user domain.User
	err := r.db.GetContext(ctx, &user, query, key, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to set profile image: %w", err)
	}
	return &user, nil
}

// Reserve атомарно резервирует deltaBytes в счётчике пользователя.
// Проверка и запись выполняются одним UPDATE с потолком, поэтому два
// конкурентных аплоада не могут вдвоём пройти по одному и тому же остатку.
func (r *UserRepository) Reserve(ctx context.Context, ownerID string, deltaBytes int64) error {
	query := `
        UPDATE users
        SET storage_used = storage_used + $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND storage_used + $2 <= storage_limit`

	result, err := r.db.ExecContext(ctx, query, ownerID, deltaBytes)
	if err != nil {
		return fmt.Errorf("failed to reserve space: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		// Либо пользователя нет, либо не хватило места.
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, ownerID); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrQuotaExceeded
	}

	return nil
}

// Release возвращает deltaBytes в квоту; счётчик не уходит ниже нуля.
func (r *UserRepository) Release(ctx context.Context, ownerID string, deltaBytes int64) error {
	query := `
        UPDATE users
        SET storage_used = GREATEST(0, storage_used - $2),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, ownerID, deltaBytes)
	if err != nil {
		return fmt.Errorf("failed to release space: %w", err)
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

// RecalculateUsedSpace сверяет счётчик с фактической суммой размеров файлов.
func (r *UserRepository) RecalculateUsedSpace(ctx context.Context, ownerID string) error {
	query := `
        UPDATE users u
        SET storage_used = COALESCE((
                SELECT SUM(f.size_bytes) FROM files f WHERE f.owner_id = u.id
            ), 0),
            updated_at = CURRENT_TIMESTAMP
        WHERE u.id = $1`

	if _, err := r.db.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("failed to recalculate used space: %w", err)
	}
	return nil
}

// RecalculateAll сверяет счётчики всех пользователей разом.
func (r *UserRepository) RecalculateAll(ctx context.Context) (int64, error) {
	query := `
        UPDATE users u
        SET storage_used = COALESCE((
                SELECT SUM(f.size_bytes) FROM files f WHERE f.owner_id = u.id
            ), 0),
            updated_at = CURRENT_TIMESTAMP
        WHERE u.storage_used <> COALESCE((
                SELECT SUM(f.size_bytes) FROM files f WHERE f.owner_id = u.id
            ), 0)`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to recalculate quotas: %w", err)
	}
	return result.RowsAffected()
}

// Delete удаляет пользователя; связанные строки убирает каскад внешних ключей.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
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
