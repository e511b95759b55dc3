package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
)

const (
	ExchangeNotifications = "notifications"
	RoutingPasswordReset  = "password-reset"
)

// resetMessage is the body published for a downstream mailer.
type resetMessage struct {
	ports.PasswordReset
	Link string `json:"link"`
}

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSender publishes reset jobs to the notifications exchange and leaves
// the actual email to a separate consumer.
type AMQPSender struct {
	mu          sync.Mutex
	ch          publisher
	frontendURL string
}

// NewAMQPSender declares the exchange on ch and returns a sender publishing
// to it.
func NewAMQPSender(ch *amqp.Channel, frontendURL string) (*AMQPSender, error) {
	if err := ch.ExchangeDeclare(ExchangeNotifications, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPSender{ch: ch, frontendURL: frontendURL}, nil
}

// DialAMQP opens a connection and a channel on it.
func DialAMQP(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	return conn, ch, nil
}

func (s *AMQPSender) Send(ctx context.Context, job ports.PasswordReset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(resetMessage{PasswordReset: job, Link: ResetLink(s.frontendURL, job.Token)})
	if err != nil {
		return fmt.Errorf("encode reset job: %w", err)
	}

	s.mu.Lock()
	err = s.ch.Publish(ExchangeNotifications, RoutingPasswordReset, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	s.mu.Unlock()
	if err != nil {
		metrics.ResetDeliveriesTotal.WithLabelValues("amqp", "failed").Inc()
		return fmt.Errorf("amqp publish: %w", err)
	}
	metrics.ResetDeliveriesTotal.WithLabelValues("amqp", "sent").Inc()
	return nil
}
