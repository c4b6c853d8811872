package handler

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"algodrive/internal/auth"
	"algodrive/internal/domain"
	"algodrive/internal/service"
)

type RecordHandler struct {
	uploadService *service.UploadService
}

// UploadResponse представляет ответ на успешную загрузку
type UploadResponse struct {
	UID string `json:"uid"`
}

func NewRecordHandler(uploadService *service.UploadService) *RecordHandler {
	return &RecordHandler{
		uploadService: uploadService,
	}
}

// Upload обрабатывает загрузку фрагмента кода
func (h *RecordHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var newRecord domain.NewCodeRecord
	if err := json.NewDecoder(r.Body).Decode(&newRecord); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	uid, err := h.uploadService.Upload(r.Context(), userID, &newRecord)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UploadResponse{UID: uid})
}

// Download отдает полное содержимое записи как файл с исходным именем
func (h *RecordHandler) Download(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		http.Error(w, "No file uid supplied", http.StatusBadRequest)
		return
	}

	record, err := h.uploadService.Download(r.Context(), uid)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to download record %s: %v", uid, err)
		h.writeStoreError(w, err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": record.Info.Filename,
	})
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(record.FullContent))
}

// ListRecords возвращает превью-записи пользователя
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.uploadService.ListRecords(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to list records for user %s: %v", userID, err)
		h.writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetQuotaInfo возвращает текущую квоту пользователя
func (h *RecordHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	quota, err := h.uploadService.QuotaInfo(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to get quota for user %s: %v", userID, err)
		h.writeUploadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quota)
}

func (h *RecordHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (h *RecordHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to algodrive API endpoint"))
}

func (h *RecordHandler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded), errors.Is(err, domain.ErrSizeExceeded):
		http.Error(w, err.Error(), http.StatusForbidden)
	case domain.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrStoreUnavailable):
		http.Error(w, "Storage temporarily unavailable", http.StatusServiceUnavailable)
	default:
		// Включая отсутствие дефолтной квоты: ошибка конфигурации,
		// детали клиенту не раскрываются
		log.Printf("Upload failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *RecordHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		http.Error(w, "Storage temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
