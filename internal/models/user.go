package models

import "time"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleRequester Role = "requester"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleRequester
}

type User struct {
	ID             int64     `yaml:"id" json:"id"`
	FullName       string    `yaml:"full_name" json:"full_name"`
	Email          string    `yaml:"email" json:"email"`
	PasswordHash   string    `yaml:"password_hash" json:"-"`
	Role           Role      `yaml:"role" json:"role"`
	TelegramChatID int64     `yaml:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `yaml:"-" json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
