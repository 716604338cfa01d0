package auth

import "errors"

// Ошибки бизнес-уровня. Обработчики сопоставляют их со статусами HTTP через errors.Is.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password is too short")
	ErrPasswordTooLong    = errors.New("password is too long")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidToken       = errors.New("could not validate credentials")
)
