package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"algodrive/internal/domain"
	"algodrive/internal/storage"
)

const fullRecordKeyPrefix = "records/"

func fullRecordKey(uid string) string {
	return fullRecordKeyPrefix + uid
}

func userRecordsPrefix(userID string) string {
	return fmt.Sprintf("users/%s/records/", userID)
}

// RecordRepository хранит полные записи и превью-записи пользователей.
// Ключи не конкурентны: у каждой записи один владеющий писатель, поэтому
// достаточно обычных записей без транзакций.
type RecordRepository struct {
	store storage.Store
}

func NewRecordRepository(store storage.Store) *RecordRepository {
	return &RecordRepository{store: store}
}

// SaveFull сохраняет запись с полным содержимым под records/{uid}.
func (r *RecordRepository) SaveFull(ctx context.Context, record *domain.FullCodeRecord) error {
	if err := r.store.Set(ctx, fullRecordKey(record.Info.UID), record); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// AddListing добавляет превью-запись в список пользователя под свежим
// ключом users/{userID}/records/{key}.
func (r *RecordRepository) AddListing(ctx context.Context, userID string, record *domain.CodeRecord) error {
	key := userRecordsPrefix(userID) + uuid.NewString()
	if err := r.store.Set(ctx, key, record); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// GetFull возвращает полную запись по uid или ErrRecordNotFound.
func (r *RecordRepository) GetFull(ctx context.Context, uid string) (*domain.FullCodeRecord, error) {
	var record domain.FullCodeRecord
	found, err := r.store.Read(ctx, fullRecordKey(uid), &record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if !found {
		return nil, domain.ErrRecordNotFound
	}
	return &record, nil
}

// ListByUser возвращает превью-записи пользователя в стабильном порядке.
func (r *RecordRepository) ListByUser(ctx context.Context, userID string) ([]domain.CodeRecord, error) {
	entries, err := r.store.List(ctx, userRecordsPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]domain.CodeRecord, 0, len(entries))
	for _, key := range keys {
		var record domain.CodeRecord
		if err := json.Unmarshal(entries[key], &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %s: %w", key, err)
		}
		records = append(records, record)
	}
	return records, nil
}
