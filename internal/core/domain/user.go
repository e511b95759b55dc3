package domain

import "time"

// Role is the marketplace role an identity acts under.
type Role string

const (
	RoleStudent         Role = "STUDENT"
	RoleEmployer        Role = "EMPLOYER"
	RoleAdmin           Role = "ADMIN"
	RoleGovernmentAdmin Role = "GOVERNMENT_ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleEmployer, RoleAdmin, RoleGovernmentAdmin:
		return true
	}
	return false
}

// User models an identity record. PasswordHash never leaves the service
// boundary: callers receive copies produced by Public.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Phone        string     `json:"phone,omitempty"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Public returns a copy of u with the password hash cleared.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	if u.LastLoginAt != nil {
		ts := *u.LastLoginAt
		out.LastLoginAt = &ts
	}
	return &out
}

// AuthResult is what register and login hand back to the caller.
type AuthResult struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}
