package domain

// UploadQuota представляет квоту загрузок для пользователя.
//
// CurAmount — счетчик зарезервированных и завершенных загрузок. Он
// намеренно знаковый: после компенсирующего Release без парного Reserve
// значение может временно уйти в минус и выравнивается следующей парой
// reserve/release.
type UploadQuota struct {
	CurAmount       int `json:"cur_amount"`
	MaxAmount       int `json:"max_amount"`
	MaxUploadSizeKB int `json:"max_upload_size_KB"`
}
