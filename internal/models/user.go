package models

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	Provider     string    `json:"provider,omitempty" db:"provider"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID  string `json:"id"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	TokenID string `json:"-"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// AuthResult is returned by register, login and OAuth callbacks.
type AuthResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
