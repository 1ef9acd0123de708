package models

import "time"

// Batch represents a coaching group meeting on a fixed weekly template.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Sport     string    `db:"sport" json:"sport"`
	CoachName string    `db:"coach_name" json:"coach_name"`
	Venue     string    `db:"venue" json:"venue"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BatchSlot is one weekly template entry for a batch. Position preserves
// the order slots were entered in; generation iterates slots in that
// order, not in weekday order.
type BatchSlot struct {
	ID        string `db:"id" json:"id"`
	BatchID   string `db:"batch_id" json:"batch_id"`
	Day       string `db:"day" json:"day"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	Position  int    `db:"position" json:"position"`
}
