package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
	"github.com/pathfinder/identity-gateway/internal/pkg/validation"
)

const defaultHandlerTimeout = 10 * time.Second

// HandlerFunc handles one inbound event for an authenticated connection.
type HandlerFunc func(ctx context.Context, conn *Connection, data json.RawMessage) error

type route struct {
	handle HandlerFunc
	// roles allowed to raise the event; empty means any role.
	roles []domain.Role
	// failure is the message sent to the client when the handler fails
	// with anything other than a validation or access error.
	failure string
}

// Router maps inbound event names to handlers. Dispatch is called from the
// connection's read loop, so events of one connection run in arrival order.
type Router struct {
	gateway       *Gateway
	applications  ports.ApplicationStore
	messages      ports.MessageStore
	notifications ports.NotificationStore
	validate      *validation.Validator
	timeout       time.Duration
	now           func() time.Time
	log           zerolog.Logger

	routes map[string]route
}

// RouterDeps are the stores the event handlers write to.
type RouterDeps struct {
	Applications  ports.ApplicationStore
	Messages      ports.MessageStore
	Notifications ports.NotificationStore
}

// NewRouter builds a Router with every event handler registered.
func NewRouter(gateway *Gateway, deps RouterDeps, timeout time.Duration, log zerolog.Logger) *Router {
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	r := &Router{
		gateway:       gateway,
		applications:  deps.Applications,
		messages:      deps.Messages,
		notifications: deps.Notifications,
		validate:      validation.New(),
		timeout:       timeout,
		now:           time.Now,
		log:           log,
		routes:        make(map[string]route),
	}

	staff := []domain.Role{domain.RoleEmployer, domain.RoleAdmin, domain.RoleGovernmentAdmin}

	r.handle(EventJoinChat, r.joinChat, nil, "Failed to join chat")
	r.handle(EventLeaveChat, r.leaveChat, nil, "Failed to leave chat")
	r.handle(EventSendMessage, r.sendMessage, nil, "Failed to send message")
	r.handle(EventApplicationStatusUpdate, r.applicationStatusUpdate, staff, "Failed to update application status")
	r.handle(EventScheduleInterview, r.scheduleInterview, staff, "Failed to schedule interview")
	r.handle(EventNewInternshipMatch, r.newInternshipMatch, staff, "Failed to send internship match")
	r.handle(EventTypingStart, r.typing(true), nil, "Failed to send typing indicator")
	r.handle(EventTypingStop, r.typing(false), nil, "Failed to send typing indicator")
	return r
}

func (r *Router) handle(event string, h HandlerFunc, roles []domain.Role, failure string) {
	r.routes[event] = route{handle: h, roles: roles, failure: failure}
}

// Events returns the registered inbound event names.
func (r *Router) Events() []string {
	out := make([]string, 0, len(r.routes))
	for name := range r.routes {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Dispatch decodes frame and runs its handler. Any failure, including a
// panic, becomes an error event sent only to conn; Dispatch never closes
// the connection.
func (r *Router) Dispatch(ctx context.Context, conn *Connection, frame []byte) {
	env, err := Decode(frame)
	if err != nil {
		metrics.EventsHandledTotal.WithLabelValues("unknown", "error").Inc()
		r.fail(conn, "unknown", err, "Malformed frame")
		return
	}

	rt, ok := r.routes[env.Event]
	if !ok {
		metrics.EventsHandledTotal.WithLabelValues("unknown", "error").Inc()
		r.emitError(conn, "Unknown event: "+env.Event)
		return
	}

	start := time.Now()
	err = r.run(ctx, conn, env, rt)
	metrics.EventHandlingDuration.WithLabelValues(env.Event).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EventsHandledTotal.WithLabelValues(env.Event, "error").Inc()
		r.fail(conn, env.Event, err, rt.failure)
		return
	}
	metrics.EventsHandledTotal.WithLabelValues(env.Event, "ok").Inc()
}

func (r *Router) run(ctx context.Context, conn *Connection, env Envelope, rt route) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s handler: %v", env.Event, rec)
		}
	}()

	if len(rt.roles) > 0 && !slices.Contains(rt.roles, conn.Role) {
		return fmt.Errorf("%w: %s cannot raise %s", domain.ErrForbidden, conn.Role, env.Event)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return rt.handle(ctx, conn, env.Data)
}

func (r *Router) fail(conn *Connection, event string, err error, failure string) {
	msg := failure
	switch {
	case errors.Is(err, domain.ErrValidation):
		msg = validation.Message(err)
		r.log.Debug().Err(err).Str("conn_id", conn.ID).Str("event", event).Msg("event rejected")
	case errors.Is(err, domain.ErrForbidden):
		msg = "Access denied"
		r.log.Warn().Err(err).Str("conn_id", conn.ID).Str("event", event).Msg("event forbidden")
	default:
		r.log.Error().Err(err).Str("conn_id", conn.ID).Str("user_id", conn.SubjectID).Str("event", event).Msg("event handler failed")
	}
	r.emitError(conn, msg)
}

func (r *Router) emitError(conn *Connection, msg string) {
	if err := r.gateway.Emit(conn.ID, EventError, ErrorPayload{Message: msg}); err != nil {
		r.log.Debug().Err(err).Str("conn_id", conn.ID).Msg("could not deliver error event")
	}
}

// decode unmarshals data into dst and validates its tags.
func (r *Router) decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	}
	return r.validate.Struct(dst)
}
