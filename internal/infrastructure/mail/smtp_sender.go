package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"gopkg.in/gomail.v2"

	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender emails reset links through gomail. Delivery runs behind a
// circuit breaker so a dead mail server fails jobs fast instead of tying up
// dispatcher workers.
type SMTPSender struct {
	cfg     SMTPConfig
	dialer  dialer
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return newSMTPSender(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password))
}

func newSMTPSender(cfg SMTPConfig, d dialer) *SMTPSender {
	return &SMTPSender{cfg: cfg, dialer: d, breaker: newBreaker("smtp")}
}

// newBreaker trips once at least three requests have been seen and 60% of
// them failed. It stays open for 30s before probing again.
func newBreaker(name string) *gobreaker.CircuitBreaker[struct{}] {
	var st gobreaker.Settings
	st.Name = name
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}
	return gobreaker.NewCircuitBreaker[struct{}](st)
}

func (s *SMTPSender) Send(ctx context.Context, job ports.PasswordReset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", job.Email)
	m.SetHeader("Subject", resetSubject)
	m.SetBody("text/html", resetBody(job, ResetLink(s.cfg.FrontendURL, job.Token)))

	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.dialer.DialAndSend(m)
	})
	if err != nil {
		metrics.ResetDeliveriesTotal.WithLabelValues("smtp", "failed").Inc()
		return fmt.Errorf("smtp send: %w", err)
	}
	metrics.ResetDeliveriesTotal.WithLabelValues("smtp", "sent").Inc()
	return nil
}
