package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"algodrive/internal/domain"
	"algodrive/internal/repository"
	"algodrive/internal/storage"
)

func newTestService(t *testing.T, store storage.Store, defaultQuota *domain.UploadQuota) *UploadService {
	t.Helper()
	if err := store.Set(context.Background(), repository.DefaultQuotaKey, defaultQuota); err != nil {
		t.Fatalf("failed to seed default quota: %v", err)
	}
	return NewUploadService(
		repository.NewQuotaRepository(store),
		repository.NewRecordRepository(store),
	)
}

func validRecord() *domain.NewCodeRecord {
	return &domain.NewCodeRecord{
		Title:       "bubble sort",
		Language:    "go",
		TagItems:    []string{"sorting"},
		Filename:    "bubble.go",
		FullContent: "package main\n\nfunc main() {}\n",
	}
}

func currentAmount(t *testing.T, store storage.Store, userID string) int {
	t.Helper()
	var quota domain.UploadQuota
	found, err := store.Read(context.Background(), "limits/customQuotas/"+userID, &quota)
	if err != nil {
		t.Fatalf("failed to read quota: %v", err)
	}
	if !found {
		t.Fatalf("custom quota for %s not found", userID)
	}
	return quota.CurAmount
}

// Сквозной сценарий: две загрузки проходят, третья отклоняется по квоте
// и счетчик возвращается к двум, скачивание работает, неизвестный uid
// дает not found.
func TestUploadEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(t, store, &domain.UploadQuota{MaxAmount: 2, MaxUploadSizeKB: 3})
	ctx := context.Background()

	first := validRecord()
	uid1, err := svc.Upload(ctx, "user-1", first)
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	second := validRecord()
	second.Filename = "insertion.go"
	uid2, err := svc.Upload(ctx, "user-1", second)
	if err != nil {
		t.Fatalf("second upload failed: %v", err)
	}
	if uid1 == uid2 {
		t.Fatalf("uids must be unique")
	}
	if got := currentAmount(t, store, "user-1"); got != 2 {
		t.Fatalf("expected cur_amount 2, got %d", got)
	}

	// Третья загрузка превышает max_amount и откатывается
	_, err = svc.Upload(ctx, "user-1", validRecord())
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if got := currentAmount(t, store, "user-1"); got != 2 {
		t.Fatalf("expected cur_amount back to 2 after rollback, got %d", got)
	}

	// Скачивание успешной загрузки возвращает содержимое и имя файла
	record, err := svc.Download(ctx, uid2)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if record.FullContent != second.FullContent || record.Info.Filename != "insertion.go" {
		t.Fatalf("downloaded record mismatch: %+v", record)
	}

	// Неизвестный uid — определенный результат, а не сбой
	if _, err := svc.Download(ctx, "0000-никогда-не-выдавался"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	records, err := svc.ListRecords(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 listing records, got %d", len(records))
	}
}

// Структурно некорректная загрузка тоже занимает слот и затем
// освобождает его: резерв идет до валидации.
func TestStructuralFailureReleasesSlot(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(t, store, &domain.UploadQuota{MaxAmount: 5, MaxUploadSizeKB: 64})
	ctx := context.Background()

	record := validRecord()
	record.Title = ""
	_, err := svc.Upload(ctx, "user-1", record)
	if !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if got := currentAmount(t, store, "user-1"); got != 0 {
		t.Fatalf("expected cur_amount 0 after rollback, got %d", got)
	}

	// Никакие записи не сохранены
	records, err := svc.ListRecords(ctx, "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestOversizedUploadRollsBack(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(t, store, &domain.UploadQuota{MaxAmount: 5, MaxUploadSizeKB: 1})
	ctx := context.Background()

	record := validRecord()
	record.FullContent = strings.Repeat("x", 1024)
	_, err := svc.Upload(ctx, "user-1", record)
	if !errors.Is(err, domain.ErrSizeExceeded) {
		t.Fatalf("expected ErrSizeExceeded, got %v", err)
	}
	if got := currentAmount(t, store, "user-1"); got != 0 {
		t.Fatalf("expected cur_amount 0 after rollback, got %d", got)
	}
}

// K конкурентных загрузок при max_amount = K-1: ровно K-1 успешны, хотя
// под конкуренцией допустимы ложные отказы сверх того; после всех
// откатов счетчик равен числу успехов.
func TestConcurrentUploadsQuotaEnforced(t *testing.T) {
	const k = 4
	store := storage.NewMemoryStore()
	svc := newTestService(t, store, &domain.UploadQuota{MaxAmount: k - 1, MaxUploadSizeKB: 64})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Upload(ctx, "user-1", validRecord())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, rejections := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrQuotaExceeded):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes > k-1 {
		t.Fatalf("expected at most %d successes, got %d", k-1, successes)
	}
	if rejections == 0 {
		t.Fatalf("expected at least one quota rejection")
	}
	if got := currentAmount(t, store, "user-1"); got != successes {
		t.Fatalf("expected cur_amount %d after rollbacks, got %d", successes, got)
	}
}

// store c инъекцией сбоев: Transact падает после заданного числа
// успешных вызовов.
type flakyStore struct {
	storage.Store
	mu        sync.Mutex
	failAfter int
}

func (s *flakyStore) Transact(ctx context.Context, key string, fn storage.TransactFunc) ([]byte, error) {
	s.mu.Lock()
	fail := s.failAfter <= 0
	s.failAfter--
	s.mu.Unlock()

	if fail {
		return nil, errors.New("connection refused")
	}
	return s.Store.Transact(ctx, key, fn)
}

// Сбой компенсирующего Release не маскирует исходную ошибку валидации.
func TestReleaseFailureDoesNotMaskValidationError(t *testing.T) {
	memory := storage.NewMemoryStore()
	if err := memory.Set(context.Background(), repository.DefaultQuotaKey,
		&domain.UploadQuota{MaxAmount: 5, MaxUploadSizeKB: 64}); err != nil {
		t.Fatalf("failed to seed default quota: %v", err)
	}
	store := &flakyStore{Store: memory, failAfter: 1} // резерв проходит, release падает
	svc := NewUploadService(
		repository.NewQuotaRepository(store),
		repository.NewRecordRepository(store),
	)

	record := validRecord()
	record.Title = ""
	_, err := svc.Upload(context.Background(), "user-1", record)
	if !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("release failure must not mask the validation error, got %v", err)
	}
}

// Недоступное хранилище на резерве: запрос прерывается без обхода квоты.
func TestReserveFailureAbortsUpload(t *testing.T) {
	memory := storage.NewMemoryStore()
	if err := memory.Set(context.Background(), repository.DefaultQuotaKey,
		&domain.UploadQuota{MaxAmount: 5, MaxUploadSizeKB: 64}); err != nil {
		t.Fatalf("failed to seed default quota: %v", err)
	}
	store := &flakyStore{Store: memory, failAfter: 0}
	svc := NewUploadService(
		repository.NewQuotaRepository(store),
		repository.NewRecordRepository(store),
	)

	_, err := svc.Upload(context.Background(), "user-1", validRecord())
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	records, err := svc.ListRecords(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("no records must be persisted when reserve fails")
	}
}

func TestUploadWithoutDefaultQuota(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewUploadService(
		repository.NewQuotaRepository(store),
		repository.NewRecordRepository(store),
	)

	_, err := svc.Upload(context.Background(), "user-1", validRecord())
	if !errors.Is(err, domain.ErrNoDefaultQuota) {
		t.Fatalf("expected ErrNoDefaultQuota, got %v", err)
	}
}

func TestUploadGeneratesPreview(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(t, store, &domain.UploadQuota{MaxAmount: 5, MaxUploadSizeKB: 64})
	ctx := context.Background()

	record := validRecord()
	record.FullContent = strings.Repeat("a", 150) + "\n" + strings.Repeat("b\n", 20)
	uid, err := svc.Upload(ctx, "user-1", record)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	full, err := svc.Download(ctx, uid)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if full.FullContent != record.FullContent {
		t.Fatalf("full content must be stored untruncated")
	}

	preview := full.Info.PreviewContent
	lines := strings.Split(preview, "\n")
	if len(lines) != 10 {
		t.Fatalf("expected preview of 10 lines, got %d", len(lines))
	}
	if lines[0] != strings.Repeat("a", 100)+"..." {
		t.Fatalf("expected first preview line truncated to 100 columns, got %q", lines[0])
	}
}
