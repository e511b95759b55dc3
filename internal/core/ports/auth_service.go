package ports

import (
	"context"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domain.Role
	Phone     string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.AuthResult, error)
	Login(ctx context.Context, email, password string) (*domain.AuthResult, error)
	Refresh(ctx context.Context, subjectID string) (string, error)
	ChangePassword(ctx context.Context, subjectID, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
	Logout(ctx context.Context, subjectID string) error
	Profile(ctx context.Context, subjectID string) (*domain.User, error)
}
