package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

type chatPayload struct {
	ApplicationID string `json:"applicationId" validate:"required"`
}

type sendMessagePayload struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	Content       string `json:"content" validate:"required,max=5000"`
	MessageType   string `json:"messageType,omitempty"`
}

type statusUpdatePayload struct {
	ApplicationID string                   `json:"applicationId" validate:"required"`
	Status        domain.ApplicationStatus `json:"status" validate:"required"`
}

type scheduleInterviewPayload struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	ScheduledAt   string `json:"scheduledAt" validate:"required"`
	MeetingLink   string `json:"meetingLink,omitempty" validate:"omitempty,url"`
	Notes         string `json:"notes,omitempty"`
}

type internshipMatchPayload struct {
	StudentID    string `json:"studentId" validate:"required"`
	InternshipID string `json:"internshipId" validate:"required"`
}

// Outbound payloads.

type statusChangedEvent struct {
	ApplicationID string                   `json:"applicationId"`
	Status        domain.ApplicationStatus `json:"status"`
	Application   *domain.Application      `json:"application"`
}

type interviewScheduledEvent struct {
	ApplicationID string `json:"applicationId"`
	ScheduledAt   string `json:"scheduledAt"`
	MeetingLink   string `json:"meetingLink,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type internshipMatchEvent struct {
	InternshipID string `json:"internshipId"`
}

type typingEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

func (r *Router) joinChat(_ context.Context, conn *Connection, data json.RawMessage) error {
	var p chatPayload
	if err := r.decode(data, &p); err != nil {
		return err
	}
	return r.gateway.Join(conn.ID, ChatRoom(p.ApplicationID))
}

func (r *Router) leaveChat(_ context.Context, conn *Connection, data json.RawMessage) error {
	var p chatPayload
	if err := r.decode(data, &p); err != nil {
		return err
	}
	return r.gateway.Leave(conn.ID, ChatRoom(p.ApplicationID))
}

func (r *Router) sendMessage(ctx context.Context, conn *Connection, data json.RawMessage) error {
	var p sendMessagePayload
	if err := r.decode(data, &p); err != nil {
		return err
	}
	if p.MessageType == "" {
		p.MessageType = domain.DefaultMessageType
	}

	app, err := r.applications.FindByID(ctx, p.ApplicationID)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	msg, err := r.messages.Create(ctx, &domain.Message{
		SenderID:      conn.SubjectID,
		ReceiverID:    app.Counterpart(conn.SubjectID),
		ApplicationID: app.ID,
		Content:       p.Content,
		MessageType:   p.MessageType,
		CreatedAt:     r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	_, err = r.gateway.Broadcast(ChatRoom(p.ApplicationID), EventNewMessage, msg)
	return err
}

func (r *Router) applicationStatusUpdate(ctx context.Context, _ *Connection, data json.RawMessage) error {
	var p statusUpdatePayload
	if err := r.decode(data, &p); err != nil {
		return err
	}
	if !p.Status.Valid() {
		return domain.ErrInvalidStatus
	}

	app, err := r.applications.UpdateStatus(ctx, p.ApplicationID, p.Status, r.now().UTC())
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}

	if _, err := r.gateway.Broadcast(UserRoom(app.StudentID), EventApplicationStatusChanged, statusChangedEvent{
		ApplicationID: p.ApplicationID,
		Status:        p.Status,
		Application:   app,
	}); err != nil {
		return err
	}

	return r.notify(ctx, &domain.Notification{
		UserID:  app.StudentID,
		Type:    domain.NotificationApplicationStatusChanged,
		Title:   "Application Status Updated",
		Message: fmt.Sprintf("Your application for %s has been %s", app.InternshipTitle, strings.ToLower(string(p.Status))),
		Payload: map[string]any{
			"applicationId": p.ApplicationID,
			"status":        string(p.Status),
		},
	})
}

func (r *Router) scheduleInterview(ctx context.Context, _ *Connection, data json.RawMessage) error {
	var p scheduleInterviewPayload
	if err := r.decode(data, &p); err != nil {
		return err
	}
	scheduledAt, err := parseScheduledAt(p.ScheduledAt)
	if err != nil {
		return err
	}

	app, err := r.applications.UpdateStatus(ctx, p.ApplicationID, domain.StatusInterviewScheduled, r.now().UTC())
	if err != nil {
		return fmt.Errorf("schedule interview: %w", err)
	}

	if _, err := r.gateway.Broadcast(UserRoom(app.StudentID), EventInterviewScheduled, interviewScheduledEvent{
		ApplicationID: p.ApplicationID,
		ScheduledAt:   p.ScheduledAt,
		MeetingLink:   p.MeetingLink,
		Notes:         p.Notes,
	}); err != nil {
		return err
	}

	payload := map[string]any{
		"applicationId": p.ApplicationID,
		"scheduledAt":   p.ScheduledAt,
	}
	if p.MeetingLink != "" {
		payload["meetingLink"] = p.MeetingLink
	}
	return r.notify(ctx, &domain.Notification{
		UserID:  app.StudentID,
		Type:    domain.NotificationInterviewScheduled,
		Title:   "Interview Scheduled",
		Message: "Your interview has been scheduled for " + scheduledAt.UTC().Format("January 2, 2006"),
		Payload: payload,
	})
}

// scheduledAtLayouts are the ISO 8601 shapes browsers and clients commonly
// send. Values without a zone are read as UTC.
var scheduledAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseScheduledAt(raw string) (time.Time, error) {
	for _, layout := range scheduledAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: scheduledAt must be an ISO 8601 date or date-time", domain.ErrValidation)
}

func (r *Router) newInternshipMatch(ctx context.Context, _ *Connection, data json.RawMessage) error {
	var p internshipMatchPayload
	if err := r.decode(data, &p); err != nil {
		return err
	}

	if _, err := r.gateway.Broadcast(UserRoom(p.StudentID), EventNewInternshipMatch, internshipMatchEvent{
		InternshipID: p.InternshipID,
	}); err != nil {
		return err
	}

	return r.notify(ctx, &domain.Notification{
		UserID:  p.StudentID,
		Type:    domain.NotificationNewInternshipMatch,
		Title:   "New Internship Match",
		Message: "We found a new internship that matches your profile!",
		Payload: map[string]any{"internshipId": p.InternshipID},
	})
}

func (r *Router) typing(isTyping bool) HandlerFunc {
	return func(_ context.Context, conn *Connection, data json.RawMessage) error {
		var p chatPayload
		if err := r.decode(data, &p); err != nil {
			return err
		}
		_, err := r.gateway.BroadcastExcept(ChatRoom(p.ApplicationID), conn.ID, EventUserTyping, typingEvent{
			UserID:   conn.SubjectID,
			IsTyping: isTyping,
		})
		return err
	}
}

// notify writes the durable notification after the push went out. A retry
// of the same event writes a second row.
func (r *Router) notify(ctx context.Context, n *domain.Notification) error {
	n.CreatedAt = r.now().UTC()
	if _, err := r.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}
