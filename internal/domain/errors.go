package domain

import "errors"

// Ошибки валидации (вызваны клиентом, не повторяются).
var (
	ErrInvalidTitle    = errors.New("title invalid")
	ErrInvalidLanguage = errors.New("language invalid")
	ErrInvalidFilename = errors.New("filename invalid")
	ErrTooManyTags     = errors.New("tag items invalid")
	ErrEmptyContent    = errors.New("no content")
	ErrQuotaExceeded   = errors.New("upload quota exceeded")
	ErrSizeExceeded    = errors.New("exceeded maximum upload size")
)

// Ошибки инфраструктуры и конфигурации.
var (
	// ErrStoreUnavailable — хранилище недоступно, запрос прерывается
	// без обхода квоты.
	ErrStoreUnavailable = errors.New("storage unavailable")

	// ErrNoDefaultQuota — дефолтная квота не засеяна в хранилище.
	// Это ошибка конфигурации процесса, а не запроса.
	ErrNoDefaultQuota = errors.New("default quota not set")

	// ErrRecordNotFound — записи с таким uid нет. Для скачивания это
	// определенный пустой результат, а не сбой.
	ErrRecordNotFound = errors.New("record not found")
)

// IsValidationError сообщает, относится ли ошибка к клиентской
// валидации загрузки.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidTitle,
		ErrInvalidLanguage,
		ErrInvalidFilename,
		ErrTooManyTags,
		ErrEmptyContent,
		ErrQuotaExceeded,
		ErrSizeExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
