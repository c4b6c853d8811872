package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"algodrive/internal/domain"
	"algodrive/internal/preview"
	"algodrive/internal/repository"
)

// UploadService связывает резервирование квоты, валидацию, генерацию
// превью и сохранение записей в единый конвейер загрузки.
type UploadService struct {
	quotaRepo  *repository.QuotaRepository
	recordRepo *repository.RecordRepository
}

func NewUploadService(
	quotaRepo *repository.QuotaRepository,
	recordRepo *repository.RecordRepository,
) *UploadService {
	return &UploadService{
		quotaRepo:  quotaRepo,
		recordRepo: recordRepo,
	}
}

// Upload проводит запись через конвейер: резерв слота квоты, валидация,
// сохранение. Возвращает uid сохраненной записи.
//
// Резерв идет до структурной валидации: некорректная загрузка тоже
// занимает слот и затем освобождает его. Порядок сохранен умышленно,
// менять его нельзя. Любой сбой после успешного резерва компенсируется
// ровно одним Release до возврата ошибки; сбой самого Release логируется
// и не маскирует исходную ошибку.
func (s *UploadService) Upload(ctx context.Context, userID string, newRecord *domain.NewCodeRecord) (string, error) {
	quota, err := s.quotaRepo.Reserve(ctx, userID)
	if err != nil {
		// Слот не занят, компенсировать нечего
		return "", err
	}

	if err := newRecord.ValidateStructure(); err != nil {
		s.release(ctx, userID)
		return "", err
	}

	if err := newRecord.ValidateQuota(quota); err != nil {
		s.release(ctx, userID)
		return "", err
	}

	uid := uuid.NewString()
	record := domain.CodeRecord{
		UID:            uid,
		Title:          newRecord.Title,
		Language:       newRecord.Language,
		PreviewContent: preview.Generate(newRecord.FullContent, preview.DefaultLines, preview.DefaultColumns),
		TagItems:       newRecord.TagItems,
		Filename:       newRecord.Filename,
	}
	fullRecord := domain.FullCodeRecord{
		FullContent: newRecord.FullContent,
		Info:        record,
	}

	// Две независимые записи без кросс-атомарности: упавший процесс
	// между ними оставляет полную запись без превью-записи
	if err := s.recordRepo.SaveFull(ctx, &fullRecord); err != nil {
		s.release(ctx, userID)
		return "", err
	}
	if err := s.recordRepo.AddListing(ctx, userID, &record); err != nil {
		s.release(ctx, userID)
		return "", err
	}

	return uid, nil
}

// Download возвращает полную запись по uid. Неизвестный uid — это
// определенный результат ErrRecordNotFound, а не сбой.
func (s *UploadService) Download(ctx context.Context, uid string) (*domain.FullCodeRecord, error) {
	return s.recordRepo.GetFull(ctx, uid)
}

// ListRecords возвращает превью-записи пользователя.
func (s *UploadService) ListRecords(ctx context.Context, userID string) ([]domain.CodeRecord, error) {
	return s.recordRepo.ListByUser(ctx, userID)
}

// QuotaInfo возвращает текущую квоту пользователя.
func (s *UploadService) QuotaInfo(ctx context.Context, userID string) (*domain.UploadQuota, error) {
	return s.quotaRepo.Get(ctx, userID)
}

func (s *UploadService) release(ctx context.Context, userID string) {
	if err := s.quotaRepo.Release(ctx, userID); err != nil {
		log.Printf("Failed to release quota slot for user %s: %v", userID, err)
	}
}
