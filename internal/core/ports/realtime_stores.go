package ports

import (
	"context"
	"time"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// ApplicationStore is the narrow application persistence the realtime
// handlers call. Both methods return domain.ErrApplicationNotFound for an
// unknown id.
type ApplicationStore interface {
	FindByID(ctx context.Context, id string) (*domain.Application, error)
	// UpdateStatus sets the status, stamps StatusChangedAt and returns the
	// updated application including its student and internship details.
	UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, at time.Time) (*domain.Application, error)
}

// MessageStore persists chat messages.
type MessageStore interface {
	Create(ctx context.Context, msg *domain.Message) (*domain.Message, error)
}

// NotificationStore is the durable notification sink. Create is not
// idempotent.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
}
