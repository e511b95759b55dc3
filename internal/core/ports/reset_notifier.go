package ports

import "context"

// PasswordReset is one out-of-band delivery job.
type PasswordReset struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	Token     string `json:"token"`
}

// ResetNotifier accepts reset jobs without blocking the caller on delivery.
type ResetNotifier interface {
	Enqueue(job PasswordReset)
}

// ResetSender performs the actual delivery (email, broker, log).
type ResetSender interface {
	Send(ctx context.Context, job PasswordReset) error
}
