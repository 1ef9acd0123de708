package models

import "time"

// PauseRequestStatus is the outcome of a pause request. Requests are
// auto-approved; there is no manual review path.
type PauseRequestStatus string

const (
	PauseRequestStatusApproved PauseRequestStatus = "APPROVED"
)

// PauseRequest records one student-initiated deferral of a session
// occurrence, including the reschedule outcome when a replacement slot
// was found.
type PauseRequest struct {
	ID                  string             `db:"id" json:"id"`
	EnrollmentID        string             `db:"enrollment_id" json:"enrollment_id"`
	SessionOccurrenceID string             `db:"session_occurrence_id" json:"session_occurrence_id"`
	RequestedAt         time.Time          `db:"requested_at" json:"requested_at"`
	SessionDate         time.Time          `db:"session_date" json:"session_date"`
	Reason              *string            `db:"reason" json:"reason,omitempty"`
	Status              PauseRequestStatus `db:"status" json:"status"`
	PausesUsed          int                `db:"pauses_used" json:"pauses_used"`
	RescheduledToDate   *time.Time         `db:"rescheduled_to_date" json:"rescheduled_to_date,omitempty"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
}
