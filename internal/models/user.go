package models

import (
	"time"

	"github.com/google/uuid"
)

// Role - роль пользователя в системе
type Role string

const (
	RoleUser      Role = "user"
	RoleResponder Role = "responder"
	RoleModerator Role = "moderator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleResponder, RoleModerator:
		return true
	}
	return false
}

// UserStatus - доступность пользователя (для спасателей - готовность к вызову)
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive
}

type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	Location     *Point     `json:"location,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Registration - данные для регистрации пользователя
type Registration struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// Actor - аутентифицированный инициатор запроса
type Actor struct {
	ID    uuid.UUID
	Role  Role
	Email string
}

// ActorFromUser строит Actor из актуальной записи пользователя
func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Email: u.Email}
}
