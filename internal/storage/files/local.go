package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore хранит файлы в каталоге на диске.
// Ссылка на файл: путь относительно рабочего каталога, например "uploads/<uuid>.png".
type LocalStore struct {
	dir string
}

// NewLocalStore создает каталог, если его нет.
func NewLocalStore(dir string) (*LocalStore, error) {
	const op = "files.NewLocalStore"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Store записывает данные в новый файл и возвращает ссылку на него.
func (s *LocalStore) Store(ctx context.Context, data []byte, ext string) (string, error) {
	const op = "files.LocalStore.Store"
	if len(data) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyFile)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	path := filepath.Join(s.dir, ObjectName(ext))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return filepath.ToSlash(path), nil
}

// Remove удаляет файл по ссылке, полученной из Store. Отсутствующий файл не считается ошибкой.
func (s *LocalStore) Remove(_ context.Context, ref string) error {
	const op = "files.LocalStore.Remove"
	path := filepath.FromSlash(ref)
	if filepath.Dir(path) != filepath.Clean(s.dir) {
		return fmt.Errorf("%s: reference %q is outside of %s", op, ref, s.dir)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
