package domain

import "time"

// NotificationType classifies a durable notification row.
type NotificationType string

const (
	NotificationApplicationStatusChanged NotificationType = "APPLICATION_STATUS_CHANGED"
	NotificationInterviewScheduled       NotificationType = "INTERVIEW_SCHEDULED"
	NotificationNewInternshipMatch       NotificationType = "NEW_INTERNSHIP_MATCH"
)

// Notification is the durable trace of a realtime push.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Payload   map[string]any   `json:"data,omitempty"`
	IsRead    bool             `json:"isRead"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DefaultMessageType is used when a chat message arrives without a type.
const DefaultMessageType = "text"

// Message is a persisted chat message between application participants.
type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	ReceiverID    string    `json:"receiverId"`
	ApplicationID string    `json:"applicationId"`
	Content       string    `json:"content"`
	MessageType   string    `json:"messageType"`
	CreatedAt     time.Time `json:"createdAt"`
}
