package service

import (
	"context"
	"fmt"
	"log"

	"nimbusdrive/internal/domain"
)

// QuotaService следит за лимитом хранения пользователя. Проверка и
// резервирование выполняются одной атомарной операцией в хранилище,
// поэтому конкурентные загрузки не могут совместно превысить лимит.
type QuotaService struct {
	users UserStore
}

func NewQuotaService(users UserStore) *QuotaService {
	return &QuotaService{users: users}
}

// Reserve резервирует место под загрузку. Возвращает domain.ErrQuotaExceeded
// ещё до записи блоба, чтобы не гонять байты в S3 впустую.
func (s *QuotaService) Reserve(ctx context.Context, ownerID string, deltaBytes int64) error {
	if deltaBytes < 0 {
		return fmt.Errorf("negative reservation of %d bytes", deltaBytes)
	}
	return s.users.Reserve(ctx, ownerID, deltaBytes)
}

// Release возвращает место после удаления файла или неудавшейся загрузки.
func (s *QuotaService) Release(ctx context.Context, ownerID string, deltaBytes int64) error {
	if deltaBytes < 0 {
		return fmt.Errorf("negative release of %d bytes", deltaBytes)
	}
	return s.users.Release(ctx, ownerID, deltaBytes)
}

// Info возвращает сводку по квоте для профиля.
func (s *QuotaService) Info(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	info := &domain.QuotaInfo{
		TotalSpace:     user.StorageLimit,
		UsedSpace:      user.StorageUsed,
		AvailableSpace: user.StorageLimit - user.StorageUsed,
	}
	if info.AvailableSpace < 0 {
		info.AvailableSpace = 0
	}
	if user.StorageLimit > 0 {
		info.UsagePercent = float64(user.StorageUsed) / float64(user.StorageLimit) * 100
	}
	return info, nil
}

// Reconcile сверяет счётчик с фактической суммой размеров файлов.
func (s *QuotaService) Reconcile(ctx context.Context, ownerID string) error {
	if err := s.users.RecalculateUsedSpace(ctx, ownerID); err != nil {
		log.Printf("[QuotaService] Ошибка сверки квоты пользователя %s: %v", ownerID, err)
		return err
	}
	return nil
}

// ReconcileAll сверяет счётчики всех пользователей; вызывается фоновой
// задачей.
func (s *QuotaService) ReconcileAll(ctx context.Context) error {
	updated, err := s.users.RecalculateAll(ctx)
	if err != nil {
		return err
	}
	if updated > 0 {
		log.Printf("[QuotaService] Сверка квот: скорректировано %d пользователей", updated)
	}
	return nil
}
