package mail

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
)

// LogSender writes the reset link to the log. It is used when no mail
// transport is configured and must not run in production.
type LogSender struct {
	frontendURL string
	log         zerolog.Logger
}

func NewLogSender(frontendURL string, log zerolog.Logger) *LogSender {
	return &LogSender{frontendURL: frontendURL, log: log}
}

func (s *LogSender) Send(_ context.Context, job ports.PasswordReset) error {
	s.log.Info().
		Str("user_id", job.UserID).
		Str("email", job.Email).
		Str("link", ResetLink(s.frontendURL, job.Token)).
		Msg("password reset requested")
	metrics.ResetDeliveriesTotal.WithLabelValues("log", "sent").Inc()
	return nil
}
