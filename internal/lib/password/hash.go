// Package password реализует безопасное хеширование и проверку паролей на основе bcrypt.
//
// Hash создает bcrypt-хеш с новой солью на каждый вызов.
// Verify сравнивает пароль с сохранённым хешем и никогда не возвращает ошибку:
// несовпадение, повреждённый хеш и внутренняя ошибка одинаково дают false.
package password

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxBytes: предельная длина пароля в байтах, которую принимает bcrypt.
const MaxBytes = 72

// dummyPassword используется для выравнивания времени ответа, когда пользователь не найден.
const dummyPassword = "cyoa-dummy-password"

// Hasher хеширует пароли с фиксированной стоимостью bcrypt.
// Значение неизменяемо после создания и безопасно для конкурентного использования.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewHasher создает Hasher. Стоимость вне допустимого диапазона bcrypt заменяется на bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost возвращает используемую стоимость bcrypt.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash принимает пароль пользователя и возвращает его bcrypt‑хэш.
//
// Пароли длиннее 72 байт отклоняются с bcrypt.ErrPasswordTooLong.
func (h *Hasher) Hash(password string) (string, error) {
	const op = "password.Hash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// Verify сравнивает bcrypt‑хэш с введённым паролем.
func (h *Hasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyDummy выполняет сравнение с заранее посчитанным хешем и всегда возвращает false.
// Время выполнения совпадает с Verify для настоящего хеша той же стоимости.
func (h *Hasher) VerifyDummy(password string) bool {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(dummyPassword), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
	return false
}
