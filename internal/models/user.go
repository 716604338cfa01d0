// Package models содержит доменную модель пользователя системы,
// включающую данные учётной записи, хэш пароля и дату создания.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID         string    // Уникальный идентификатор, назначается базой при вставке
	Email        string    // Электронная почта, хранится как введена, без нормализации регистра
	PasswordHash string    // bcrypt-хэш пароля
	ProfilePic   *string   // Ссылка на сохранённый аватар, может отсутствовать
	CreatedAt    time.Time // Дата создания, не меняется
}

// PublicUser: публичное представление пользователя без хэша пароля.
type PublicUser struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	ProfilePic *string   `json:"profile_pic"`
	CreatedAt  time.Time `json:"created_at"`
}

// Public возвращает публичное представление пользователя.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:         u.UUID,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}
