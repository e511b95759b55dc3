package domain

import "time"

// ApplicationStatus is the lifecycle state of an internship application.
type ApplicationStatus string

const (
	StatusDraft              ApplicationStatus = "DRAFT"
	StatusSubmitted          ApplicationStatus = "SUBMITTED"
	StatusUnderReview        ApplicationStatus = "UNDER_REVIEW"
	StatusShortlisted        ApplicationStatus = "SHORTLISTED"
	StatusInterviewScheduled ApplicationStatus = "INTERVIEW_SCHEDULED"
	StatusInterviewCompleted ApplicationStatus = "INTERVIEW_COMPLETED"
	StatusSelected           ApplicationStatus = "SELECTED"
	StatusRejected           ApplicationStatus = "REJECTED"
	StatusWithdrawn          ApplicationStatus = "WITHDRAWN"
)

var applicationStatuses = map[ApplicationStatus]struct{}{
	StatusDraft:              {},
	StatusSubmitted:          {},
	StatusUnderReview:        {},
	StatusShortlisted:        {},
	StatusInterviewScheduled: {},
	StatusInterviewCompleted: {},
	StatusSelected:           {},
	StatusRejected:           {},
	StatusWithdrawn:          {},
}

// Valid reports whether s is a known application status.
func (s ApplicationStatus) Valid() bool {
	_, ok := applicationStatuses[s]
	return ok
}

// Application is the slice of an application record the realtime handlers
// need: who the two parties are and what the internship is called.
type Application struct {
	ID              string            `json:"id"`
	StudentID       string            `json:"studentId"`
	EmployerID      string            `json:"employerId,omitempty"`
	InternshipID    string            `json:"internshipId"`
	InternshipTitle string            `json:"internshipTitle,omitempty"`
	Status          ApplicationStatus `json:"status"`
	StatusChangedAt *time.Time        `json:"statusChangedAt,omitempty"`
}

// Counterpart returns the other participant of the application's chat.
func (a *Application) Counterpart(userID string) string {
	if userID == a.StudentID {
		return a.EmployerID
	}
	return a.StudentID
}
