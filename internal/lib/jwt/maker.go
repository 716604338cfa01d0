// Package jwt реализует выпуск и проверку JWT токенов с идентификатором пользователя.
//
// Maker определяет интерфейс для создания и проверки токенов.
// MakerImpl: конкретная реализация с секретным ключом, HMAC-алгоритмом и сроком жизни по умолчанию.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL используется, если срок жизни токена не задан.
const DefaultTokenTTL = 15 * time.Minute

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	// GenerateToken выпускает токен со сроком жизни по умолчанию.
	GenerateToken(subject Subject) (string, error)
	// GenerateTokenWithTTL выпускает токен с явным сроком жизни.
	GenerateTokenWithTTL(subject Subject, ttl time.Duration) (string, error)
	// ParseToken проверяет подпись, срок и обязательные claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker. Все поля неизменяемы после создания.
type MakerImpl struct {
	secretKey []byte                 // Секретный ключ для подписи токенов.
	method    *jwt.SigningMethodHMAC // Алгоритм подписи, общий для выпуска и проверки.
	tokenTTL  time.Duration          // Время жизни токена по умолчанию.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl.
//
// algorithm: одно из HS256, HS384, HS512. Пустая строка означает HS256.
// Неположительный ttl заменяется на DefaultTokenTTL.
func NewJWTMaker(secretKey, algorithm string, ttl time.Duration) (*MakerImpl, error) {
	const op = "jwt.NewJWTMaker"
	if secretKey == "" {
		return nil, fmt.Errorf("%s: empty secret key", op)
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported signing algorithm %q", op, algorithm)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &MakerImpl{
		secretKey: []byte(secretKey),
		method:    method,
		tokenTTL:  ttl,
	}, nil
}

// TokenTTL возвращает срок жизни по умолчанию.
func (j *MakerImpl) TokenTTL() time.Duration {
	return j.tokenTTL
}
