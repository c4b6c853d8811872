package domain

import (
	"fmt"
	"unicode/utf8"
)

// NewCodeRecord представляет запрос клиента на сохранение фрагмента кода.
type NewCodeRecord struct {
	Title       string   `json:"title"`
	Language    string   `json:"language"`
	TagItems    []string `json:"tagItems"`
	Filename    string   `json:"filename"`
	FullContent string   `json:"full_content"`
}

// CodeRecord представляет запись с превью-содержимым для списка загрузок.
type CodeRecord struct {
	UID            string   `json:"uid"`
	Title          string   `json:"title"`
	Language       string   `json:"language"`
	PreviewContent string   `json:"preview_content"`
	TagItems       []string `json:"tagItems"`
	Filename       string   `json:"filename"`
}

// FullCodeRecord представляет запись с полным содержимым.
type FullCodeRecord struct {
	FullContent string     `json:"full_content"`
	Info        CodeRecord `json:"info"`
}

// ValidateStructure проверяет структурные поля записи. Проверки идут в
// фиксированном порядке и возвращают первую нарушенную: порядок важен
// для детерминированных сообщений об ошибках.
func (r *NewCodeRecord) ValidateStructure() error {
	if r.Title == "" || utf8.RuneCountInString(r.Title) > 100 {
		return ErrInvalidTitle
	}
	if r.Language == "" || utf8.RuneCountInString(r.Language) > 100 {
		return ErrInvalidLanguage
	}
	if r.Filename == "" || utf8.RuneCountInString(r.Filename) > 100 {
		return ErrInvalidFilename
	}
	if len(r.TagItems) > 100 {
		return ErrTooManyTags
	}
	if r.FullContent == "" {
		return ErrEmptyContent
	}
	return nil
}

// ValidateQuota проверяет запись против снимка зарезервированной квоты.
// Счетчик сравнивается строго (>), размер — нестрого (>=); асимметрия
// сохранена умышленно.
func (r *NewCodeRecord) ValidateQuota(quota *UploadQuota) error {
	if quota.CurAmount > quota.MaxAmount {
		return ErrQuotaExceeded
	}
	if len(r.FullContent) >= quota.MaxUploadSizeKB*1024 {
		return fmt.Errorf("%w (%dKB)", ErrSizeExceeded, quota.MaxUploadSizeKB)
	}
	return nil
}
