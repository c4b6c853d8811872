package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"algodrive/internal/domain"
	"algodrive/internal/storage"
)

// Раскладка ключей квот в хранилище. Пути сохраняются как есть для
// совместимости с внешними инструментами просмотра.
const (
	DefaultQuotaKey      = "limits/defaultLimit"
	customQuotaKeyPrefix = "limits/customQuotas/"
)

func customQuotaKey(userID string) string {
	return customQuotaKeyPrefix + userID
}

// QuotaRepository реализует протокол резервирования квоты поверх
// атомарных транзакций хранилища. Счетчик пользователя меняется только
// через Reserve и Release, никогда через слепую запись.
type QuotaRepository struct {
	store storage.Store
}

func NewQuotaRepository(store storage.Store) *QuotaRepository {
	return &QuotaRepository{store: store}
}

// Reserve атомарно инкрементирует счетчик загрузок пользователя и
// возвращает квоту после инкремента. Если кастомной квоты еще нет, она
// засеивается копией дефолтной. Резерв оптимистичен: вызов ничего не
// знает о том, пройдет ли загрузка валидацию.
func (r *QuotaRepository) Reserve(ctx context.Context, userID string) (*domain.UploadQuota, error) {
	var defaultQuota domain.UploadQuota
	found, err := r.store.Read(ctx, DefaultQuotaKey, &defaultQuota)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, domain.ErrNoDefaultQuota
	}

	committed, err := r.store.Transact(ctx, customQuotaKey(userID), func(current []byte) ([]byte, error) {
		quota := defaultQuota
		if current != nil {
			if err := json.Unmarshal(current, &quota); err != nil {
				return nil, fmt.Errorf("failed to unmarshal quota: %w", err)
			}
		}
		quota.CurAmount++
		return json.Marshal(quota)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	var quota domain.UploadQuota
	if err := json.Unmarshal(committed, &quota); err != nil {
		return nil, fmt.Errorf("failed to unmarshal committed quota: %w", err)
	}
	return &quota, nil
}

// Release компенсирует Reserve, загрузка которого не прошла валидацию.
// Декремент идет тем же ключом, что и резерв, поэтому сериализуется с
// конкурентными Reserve. Пол не ограничен: отрицательное значение
// допустимо и выравнивается следующей парой reserve/release.
func (r *QuotaRepository) Release(ctx context.Context, userID string) error {
	_, err := r.store.Transact(ctx, customQuotaKey(userID), func(current []byte) ([]byte, error) {
		var quota domain.UploadQuota
		if current != nil {
			if err := json.Unmarshal(current, &quota); err != nil {
				return nil, fmt.Errorf("failed to unmarshal quota: %w", err)
			}
		}
		quota.CurAmount--
		return json.Marshal(quota)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Get возвращает текущую квоту пользователя: кастомную, если она уже
// создана, иначе дефолтную.
func (r *QuotaRepository) Get(ctx context.Context, userID string) (*domain.UploadQuota, error) {
	var quota domain.UploadQuota
	found, err := r.store.Read(ctx, customQuotaKey(userID), &quota)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if found {
		return &quota, nil
	}

	found, err = r.store.Read(ctx, DefaultQuotaKey, &quota)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, domain.ErrNoDefaultQuota
	}
	return &quota, nil
}
