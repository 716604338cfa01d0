package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken возвращается для любой причины отказа в ParseToken.
// Исходная причина доступна через errors.Is вместе с этой ошибкой.
var ErrInvalidToken = errors.New("invalid token")

// errMissingClaims: токен корректно подписан, но в нём нет sub или user_id.
var errMissingClaims = errors.New("required claims are missing")

// Subject описывает пользователя, для которого выпускается токен.
type Subject struct {
	Email  string
	UserID string
}

// CustomClaims описывает данные, хранящиеся в JWT.
// Email пользователя хранится в стандартном поле sub.
type CustomClaims struct {
	UserID               string `json:"user_id"` // Идентификатор пользователя
	jwt.RegisteredClaims        // sub, exp, iat, jti
}

// Email возвращает email пользователя из claim sub.
func (c *CustomClaims) Email() string {
	return c.Subject
}

// GenerateToken создает JWT токен со сроком жизни по умолчанию.
func (j *MakerImpl) GenerateToken(subject Subject) (string, error) {
	return j.GenerateTokenWithTTL(subject, j.tokenTTL)
}

// GenerateTokenWithTTL создает JWT токен, истекающий через ttl от текущего момента.
// Отрицательный ttl даёт уже истёкший токен.
func (j *MakerImpl) GenerateTokenWithTTL(subject Subject, ttl time.Duration) (string, error) {
	const op = "jwt.GenerateToken"
	now := time.Now()
	claims := CustomClaims{
		UserID: subject.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.Email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(j.method, claims).SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken парсит JWT токен, проверяет подпись, алгоритм, срок действия
// и наличие sub и user_id.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{},
		func(_ *jwt.Token) (any, error) {
			return j.secretKey, nil
		},
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if claims.Subject == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, errMissingClaims)
	}
	return claims, nil
}
