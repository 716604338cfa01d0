package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890"

func newTestMaker(t *testing.T, ttl time.Duration) *MakerImpl {
	t.Helper()
	maker, err := NewJWTMaker(testSecret, "HS256", ttl)
	require.NoError(t, err)
	return maker
}

func TestJWTMaker_GenerateAndParseToken_ValidCases(t *testing.T) {
	tokenTTL := 15 * time.Minute
	maker := newTestMaker(t, tokenTTL)

	tests := []struct {
		name    string
		subject Subject
	}{
		{
			name:    "plain email",
			subject: Subject{Email: "user@test.com", UserID: "2f1c7a0e-8a3e-4b39-9d1c-3f7f2f0d9a11"},
		},
		{
			name:    "email with plus",
			subject: Subject{Email: "user+story@domain.com", UserID: "42"},
		},
		{
			name:    "mixed case email is kept verbatim",
			subject: Subject{Email: "User@Test.COM", UserID: "7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.subject)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.subject.Email, claims.Email())
			assert.Equal(t, tt.subject.UserID, claims.UserID)
			assert.NotEmpty(t, claims.ID)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_GenerateTokenWithTTL(t *testing.T) {
	maker := newTestMaker(t, 0)
	assert.Equal(t, DefaultTokenTTL, maker.TokenTTL())

	token, err := maker.GenerateTokenWithTTL(Subject{Email: "a@b.c", UserID: "1"}, 2*time.Hour)
	require.NoError(t, err)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestJWTMaker_TokensAreUnique(t *testing.T) {
	maker := newTestMaker(t, time.Minute)
	subject := Subject{Email: "a@b.c", UserID: "1"}

	first, err := maker.GenerateToken(subject)
	require.NoError(t, err)
	second, err := maker.GenerateToken(subject)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	maker := newTestMaker(t, 15*time.Minute)

	validToken, err := maker.GenerateToken(Subject{Email: "user@test.com", UserID: "1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: createExpiredToken(t)},
		{name: "wrong secret key", token: createTokenWithWrongSecret(t)},
		{name: "tampered token", token: validToken + "tampered"},
		{name: "tampered payload character", token: tamperMiddle(validToken)},
		{name: "none algorithm", token: createUnsignedToken(t)},
		{name: "other hmac algorithm", token: createTokenWithAlgorithm(t, jwt.SigningMethodHS512)},
		{name: "missing user_id", token: mustSign(t, CustomClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user@test.com",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		})},
		{name: "missing subject", token: mustSign(t, CustomClaims{
			UserID: "1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		})},
		{name: "missing expiration", token: mustSign(t, CustomClaims{
			UserID:           "1",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user@test.com"},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}

func TestJWTMaker_DifferentSecretKeys(t *testing.T) {
	maker1, err := NewJWTMaker("first_secret_key", "HS256", 15*time.Minute)
	require.NoError(t, err)
	maker2, err := NewJWTMaker("different_secret_key", "HS256", 15*time.Minute)
	require.NoError(t, err)

	token, err := maker1.GenerateToken(Subject{Email: "user@test.com", UserID: "1"})
	require.NoError(t, err)

	claims, err := maker2.ParseToken(token)
	assert.Error(t, err)
	assert.Nil(t, claims)

	claims, err = maker1.ParseToken(token)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
}

func TestJWTMaker_ExpiredErrorKeepsCause(t *testing.T) {
	maker := newTestMaker(t, time.Minute)

	_, err := maker.ParseToken(createExpiredToken(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
	assert.Contains(t, err.Error(), "expired")
}

func TestNewJWTMaker_Errors(t *testing.T) {
	_, err := NewJWTMaker("", "HS256", time.Minute)
	assert.Error(t, err)

	_, err = NewJWTMaker("secret", "RS256", time.Minute)
	assert.Error(t, err)

	_, err = NewJWTMaker("secret", "none", time.Minute)
	assert.Error(t, err)

	maker, err := NewJWTMaker("secret", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "HS256", maker.method.Alg())
}

func createExpiredToken(t *testing.T) string {
	maker := newTestMaker(t, time.Minute)
	token, err := maker.GenerateTokenWithTTL(Subject{Email: "user@test.com", UserID: "1"}, -time.Second)
	require.NoError(t, err)
	return token
}

func createTokenWithWrongSecret(t *testing.T) string {
	wrongMaker, err := NewJWTMaker("wrong_secret_key", "HS256", 15*time.Minute)
	require.NoError(t, err)
	token, err := wrongMaker.GenerateToken(Subject{Email: "user@test.com", UserID: "1"})
	require.NoError(t, err)
	return token
}

func createTokenWithAlgorithm(t *testing.T, method jwt.SigningMethod) string {
	claims := CustomClaims{
		UserID: "1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user@test.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func mustSign(t *testing.T, claims CustomClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func createUnsignedToken(t *testing.T) string {
	claims := CustomClaims{
		UserID: "1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user@test.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}

// tamperMiddle меняет один символ в payload, оставляя подпись прежней.
func tamperMiddle(token string) string {
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	i := len(payload) / 2
	if payload[i] == 'A' {
		payload[i] = 'B'
	} else {
		payload[i] = 'A'
	}
	parts[1] = string(payload)
	return strings.Join(parts, ".")
}
