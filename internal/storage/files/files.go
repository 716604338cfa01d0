// Package files сохраняет загруженные аватары пользователей.
//
// Каждый файл получает новое имя из uuid и исходного расширения.
package files

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyFile возвращается при попытке сохранить пустой файл.
var ErrEmptyFile = errors.New("empty file")

const maxExtLen = 10

// ObjectName формирует уникальное имя файла. Некорректное расширение отбрасывается.
func ObjectName(ext string) string {
	return uuid.NewString() + SanitizeExt(ext)
}

// SanitizeExt оставляет расширение вида ".png" из латинских букв и цифр в нижнем регистре.
func SanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(ext) == 1 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
