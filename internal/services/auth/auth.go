// Package auth содержит бизнес-логику регистрации, входа и проверки токенов.
//
// Обязательные зависимости передаются в New, необязательные (файловое хранилище,
// кэш, список отозванных токенов, события, метрики) подключаются через Option.
// Сбой любой необязательной зависимости не приводит к ошибке основной операции.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/gabrielstm/cyoa-backend/internal/lib/jwt"
	"github.com/gabrielstm/cyoa-backend/internal/lib/password"
	"github.com/gabrielstm/cyoa-backend/internal/lib/sl"
	"github.com/gabrielstm/cyoa-backend/internal/metrics"
	"github.com/gabrielstm/cyoa-backend/internal/models"
	"github.com/gabrielstm/cyoa-backend/internal/storage/repository"
)

// Значения политики по умолчанию.
const (
	DefaultMinPasswordLength = 6
	DefaultLoginTokenTTL     = 30 * time.Minute
	TokenTypeBearer          = "bearer"
)

// UserRepository описывает контракт хранилища пользователей.
type UserRepository interface {
	RegisterUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// FileStore сохраняет загруженные файлы и возвращает ссылку на них.
type FileStore interface {
	Store(ctx context.Context, data []byte, ext string) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Cache описывает JSON-кэш с ограничением времени на операцию.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

// EventPublisher отправляет события во внешнюю шину.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Policy задаёт правила регистрации и входа.
type Policy struct {
	MinPasswordLength int
	LoginTokenTTL     time.Duration
}

// Upload: загруженный аватар: содержимое и исходное расширение файла.
type Upload struct {
	Data []byte
	Ext  string
}

// RegisterInput: данные для регистрации.
type RegisterInput struct {
	Email      string
	Password   string
	ProfilePic *Upload
}

// TokenPair: ответ на успешный вход.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserRegistered публикуется после успешной регистрации.
type UserRegistered struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	ProfilePic *string   `json:"profile_pic,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuthService отвечает за регистрацию, вход и проверку JWT.
type AuthService struct {
	users  UserRepository
	maker  jwt.Maker
	hasher *password.Hasher
	policy Policy

	files      FileStore
	cache      Cache
	profileTTL time.Duration
	revoked    Cache
	events     EventPublisher
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// New создает AuthService. Нулевые значения policy заменяются значениями по умолчанию.
func New(users UserRepository, maker jwt.Maker, hasher *password.Hasher, policy Policy, opts ...Option) *AuthService {
	if policy.MinPasswordLength <= 0 {
		policy.MinPasswordLength = DefaultMinPasswordLength
	}
	if policy.LoginTokenTTL <= 0 {
		policy.LoginTokenTTL = DefaultLoginTokenTTL
	}
	if hasher == nil {
		hasher = password.NewHasher(0)
	}
	s := &AuthService{
		users:  users,
		maker:  maker,
		hasher: hasher,
		policy: policy,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register создает пользователя. Проверки выполняются в порядке: занятость email,
// длина пароля в символах снизу и в байтах сверху, затем сохранение аватара и вставка записи.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "auth.Register"
	log := s.log.With(sl.Op(op))

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		s.metrics.Registration(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		s.metrics.Registration(metrics.ResultEmailTaken)
		return nil, ErrEmailTaken
	}
	if utf8.RuneCountInString(in.Password) < s.policy.MinPasswordLength {
		s.metrics.Registration(metrics.ResultWeak)
		return nil, fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, s.policy.MinPasswordLength)
	}
	if len(in.Password) > password.MaxBytes {
		s.metrics.Registration(metrics.ResultWeak)
		return nil, fmt.Errorf("%w: at most %d bytes allowed", ErrPasswordTooLong, password.MaxBytes)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.metrics.Registration(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var picRef *string
	if in.ProfilePic != nil {
		if s.files == nil {
			log.Warn("profile picture ignored, uploads are disabled")
		} else {
			ref, err := s.files.Store(ctx, in.ProfilePic.Data, in.ProfilePic.Ext)
			if err != nil {
				s.metrics.Registration(metrics.ResultError)
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			picRef = &ref
		}
	}

	user, err := s.users.RegisterUser(ctx, models.User{
		Email:        in.Email,
		PasswordHash: hash,
		ProfilePic:   picRef,
	})
	if err != nil {
		s.removeUpload(ctx, log, picRef)
		if errors.Is(err, repository.ErrUserExists) {
			s.metrics.Registration(metrics.ResultEmailTaken)
			return nil, ErrEmailTaken
		}
		s.metrics.Registration(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Registration(metrics.ResultOK)
	s.cacheProfilePic(ctx, log, user.UUID, user.ProfilePic)
	if s.events != nil {
		event := UserRegistered{
			UserID:     user.UUID,
			Email:      user.Email,
			ProfilePic: user.ProfilePic,
			CreatedAt:  user.CreatedAt,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			log.Warn("failed to publish user.registered", sl.Err(err))
		}
	}
	return user, nil
}

// Login проверяет пароль и выпускает токен доступа.
// Неизвестный email и неверный пароль неразличимы ни по ответу, ни по времени.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (*TokenPair, error) {
	const op = "auth.Login"

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.hasher.VerifyDummy(rawPassword)
		s.metrics.Login(metrics.ResultInvalid)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.metrics.Login(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !s.hasher.Verify(rawPassword, user.PasswordHash) {
		s.metrics.Login(metrics.ResultInvalid)
		return nil, ErrInvalidCredentials
	}

	token, err := s.maker.GenerateTokenWithTTL(jwt.Subject{Email: user.Email, UserID: user.UUID}, s.policy.LoginTokenTTL)
	if err != nil {
		s.metrics.Login(metrics.ResultError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Login(metrics.ResultOK)
	return &TokenPair{AccessToken: token, TokenType: TokenTypeBearer}, nil
}

// ValidateToken проверяет токен и возвращает пользователя, которому он выдан.
// Любая причина отказа сводится к ErrInvalidToken, кроме сбоя хранилища.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	user, _, err := s.validate(ctx, token)
	return user, err
}

// CurrentUser возвращает публичное представление владельца токена.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.PublicUser, error) {
	user, _, err := s.validate(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Profile(ctx, user), nil
}

// Profile возвращает публичное представление уже проверенного пользователя.
// Ссылка на аватар читается из кэша, при промахе берётся из записи пользователя.
func (s *AuthService) Profile(ctx context.Context, user *models.User) *models.PublicUser {
	const op = "auth.Profile"
	log := s.log.With(sl.Op(op))

	pub := user.Public()
	if s.cache == nil {
		return pub
	}

	var pic *string
	hit, err := s.cache.Get(ctx, ProfilePicKey(user.UUID), &pic)
	switch {
	case err != nil:
		s.metrics.CacheLookup(metrics.ResultCacheFailed)
		log.Debug("profile cache unavailable", sl.Err(err))
	case hit:
		s.metrics.CacheLookup(metrics.ResultCacheHit)
		pub.ProfilePic = pic
		return pub
	default:
		s.metrics.CacheLookup(metrics.ResultCacheMiss)
	}
	s.cacheProfilePic(ctx, log, user.UUID, user.ProfilePic)
	return pub
}

// Logout проверяет токен и отзывает его до конца срока действия.
// Без списка отозванных токенов операция ничего не делает после проверки токена.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	_, claims, err := s.validate(ctx, token)
	if err != nil {
		return err
	}
	return s.revoke(ctx, claims)
}

// Revoke отзывает токен, уже прошедший ValidateToken. Проверяются только
// подпись и срок, пользователь повторно не загружается.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	claims, err := s.maker.ParseToken(token)
	if err != nil {
		return ErrInvalidToken
	}
	return s.revoke(ctx, claims)
}

func (s *AuthService) revoke(ctx context.Context, claims *jwt.CustomClaims) error {
	const op = "auth.Logout"

	if s.revoked == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Set(ctx, RevokedKey(claims.ID), true, ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *AuthService) validate(ctx context.Context, token string) (*models.User, *jwt.CustomClaims, error) {
	const op = "auth.ValidateToken"
	log := s.log.With(sl.Op(op))

	claims, err := s.maker.ParseToken(token)
	if err != nil {
		log.Debug("token rejected", sl.Err(err))
		s.metrics.TokenValidation(metrics.ResultInvalid)
		return nil, nil, ErrInvalidToken
	}

	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.Exists(ctx, RevokedKey(claims.ID))
		if err != nil {
			log.Warn("revocation list unavailable", sl.Err(err))
		} else if revoked {
			s.metrics.TokenValidation(metrics.ResultInvalid)
			return nil, nil, ErrInvalidToken
		}
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.metrics.TokenValidation(metrics.ResultInvalid)
		return nil, nil, ErrInvalidToken
	}
	if err != nil {
		s.metrics.TokenValidation(metrics.ResultError)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.Email != claims.Email() {
		s.metrics.TokenValidation(metrics.ResultInvalid)
		return nil, nil, ErrInvalidToken
	}
	s.metrics.TokenValidation(metrics.ResultOK)
	return user, claims, nil
}

func (s *AuthService) cacheProfilePic(ctx context.Context, log *slog.Logger, userUID string, pic *string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, ProfilePicKey(userUID), pic, s.profileTTL); err != nil {
		log.Debug("failed to cache profile picture", sl.Err(err))
	}
}

func (s *AuthService) removeUpload(ctx context.Context, log *slog.Logger, ref *string) {
	if ref == nil || s.files == nil {
		return
	}
	if err := s.files.Remove(context.WithoutCancel(ctx), *ref); err != nil {
		log.Warn("failed to remove orphaned upload", slog.String("ref", *ref), sl.Err(err))
	}
}

// ProfilePicKey возвращает ключ кэша для ссылки на аватар пользователя.
func ProfilePicKey(userUID string) string {
	return "user:" + userUID + ":profile_pic"
}

// RevokedKey возвращает ключ списка отозванных токенов.
func RevokedKey(jti string) string {
	return "revoked:" + jti
}
