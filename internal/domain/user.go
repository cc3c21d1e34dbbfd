package domain

import (
	"fmt"
	"time"
)

// Role — роль пользователя. Набор ролей закрыт.
type Role int

const (
	RoleClient Role = iota + 1
	RoleAdmin
)

var authorities = map[Role]string{
	RoleClient: "ROLE_CLIENT",
	RoleAdmin:  "ROLE_ADMIN",
}

// Authority возвращает строковое имя роли в том виде, в котором оно хранится в tb_role.
func (r Role) Authority() string {
	if a, ok := authorities[r]; ok {
		return a
	}

	return "ROLE_UNKNOWN"
}

func (r Role) String() string {
	return r.Authority()
}

// ParseRole разбирает authority из базы данных.
func ParseRole(authority string) (Role, error) {
	for role, a := range authorities {
		if a == authority {
			return role, nil
		}
	}

	return 0, fmt.Errorf("unknown authority %q", authority)
}

// User описывает зарегистрированного пользователя.
type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	BirthDate    *time.Time
	PasswordHash string
	Roles        []Role
}

// HasRole сообщает, назначена ли пользователю роль.
func (u *User) HasRole(role Role) bool {
	return hasRole(u.Roles, role)
}

// Caller — аутентифицированный пользователь, от имени которого выполняется запрос.
// Создаётся на каждый запрос и явно передаётся в бизнес-операции.
type Caller struct {
	ID    int64
	Name  string
	Email string
	Roles []Role
}

func NewCaller(user *User) *Caller {
	roles := make([]Role, len(user.Roles))
	copy(roles, user.Roles)

	return &Caller{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Roles: roles,
	}
}

func (c *Caller) HasRole(role Role) bool {
	return hasRole(c.Roles, role)
}

func (c *Caller) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

func hasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}

	return false
}
