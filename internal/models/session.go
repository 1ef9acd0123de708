package models

import "time"

// SessionStatus represents the state of a single session occurrence.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusMissed    SessionStatus = "MISSED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
	SessionStatusPaused    SessionStatus = "PAUSED"
)

// Valid returns true when the status is a supported value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusCompleted, SessionStatusMissed, SessionStatusCancelled, SessionStatusPaused:
		return true
	default:
		return false
	}
}

// Terminal returns true for states an occurrence cannot leave via attendance.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusMissed, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// SessionOccurrence is one concrete dated instance of a training session
// for one enrollment. Start and end times are copied from the batch slot
// at creation so later template edits do not rewrite history.
type SessionOccurrence struct {
	ID              string        `db:"id" json:"id"`
	EnrollmentID    string        `db:"enrollment_id" json:"enrollment_id"`
	BatchID         string        `db:"batch_id" json:"batch_id"`
	SessionNumber   int           `db:"session_number" json:"session_number"`
	ScheduledDate   time.Time     `db:"scheduled_date" json:"scheduled_date"`
	StartTime       string        `db:"start_time" json:"start_time"`
	EndTime         string        `db:"end_time" json:"end_time"`
	Status          SessionStatus `db:"status" json:"status"`
	IsPaused        bool          `db:"is_paused" json:"is_paused"`
	CanPause        bool          `db:"can_pause" json:"can_pause"`
	PauseReason     *string       `db:"pause_reason" json:"pause_reason,omitempty"`
	RescheduledFrom *time.Time    `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionOccurrenceView decorates an occurrence with eligibility computed
// from the current clock. The stored can_pause flag is only a creation-time
// snapshot; Pausable is the value decisions are made on.
type SessionOccurrenceView struct {
	SessionOccurrence
	Pausable bool `json:"pausable"`
}
