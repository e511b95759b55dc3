package ports

import (
	"context"
	"time"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// CredentialStore persists identity records. Lookups return
// domain.ErrUserNotFound when the record is absent; any other error is a
// transient failure.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Create inserts the user and returns domain.ErrUserExists when the
	// email is already taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// IdentityLookup is the read-only slice of CredentialStore the realtime
// handshake needs.
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}
