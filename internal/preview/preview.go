// Package preview строит превью-содержимое для записей кода:
// ограничение по строкам и колонкам для быстрой загрузки списков.
package preview

import "strings"

const (
	DefaultLines   = 10
	DefaultColumns = 100
)

// Generate обрезает fullContent до первых previewLines строк и
// previewColumns колонок. Строка длиной ровно previewColumns остается
// без изменений; более длинная обрезается и получает суффикс "...".
// Преобразование чистое и детерминированное.
func Generate(fullContent string, previewLines, previewColumns int) string {
	lines := strings.Split(fullContent, "\n")
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}

	for i, line := range lines {
		runes := []rune(line)
		if len(runes) > previewColumns {
			lines[i] = string(runes[:previewColumns]) + "..."
		}
	}

	return strings.Join(lines, "\n")
}
