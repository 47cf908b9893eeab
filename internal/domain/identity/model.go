package identity

import (
	"time"

	"github.com/google/uuid"
)

// User maps to the users table. ActiveTokenID holds the jti of the most
// recently issued token; older tokens stop authenticating once it rotates.
type User struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	ActiveTokenID *uuid.UUID `db:"active_token_id" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	Roles []Role `db:"-" json:"roles,omitempty"`
}

// Role maps to the roles table.
type Role struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	Permissions []Permission `db:"-" json:"permissions,omitempty"`
}

// Permission maps to the permissions table. Name follows "module.action"
// (e.g. "queue.call", "invoice.pay").
type Permission struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
