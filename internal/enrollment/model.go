package enrollment

import "time"

type Status string

const (
	StatusEnrolled      Status = "enrolled"
	StatusWaitlist      Status = "waitlist"
	StatusCancelled     Status = "cancelled"
	StatusCancelledLate Status = "cancelled_late"
)

// Active reports whether the status still occupies the roster (a seat or
// a waitlist position).
func (s Status) Active() bool {
	return s == StatusEnrolled || s == StatusWaitlist
}

// Enrollment is one user's relationship to one class instance. Rows are
// never re-created: the status transitions in place, and cancelled rows
// stay as history.
type Enrollment struct {
	ID               int       `db:"id" json:"id"`
	ClassInstanceID  int       `db:"class_instance_id" json:"class_instance_id"`
	UserID           int       `db:"user_id" json:"user_id"`
	Status           Status    `db:"status" json:"status"`
	WaitlistPosition *int      `db:"waitlist_position" json:"waitlist_position,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	StatusChangedAt  time.Time `db:"status_changed_at" json:"status_changed_at"`
}

type RosterCounts struct {
	Enrolled   int `db:"enrolled" json:"enrolled"`
	Waitlisted int `db:"waitlisted" json:"waitlisted"`
}

// Result is the outcome of an admission-path operation: the caller learns
// whether they ended up enrolled or waitlisted.
type Result struct {
	Status     Status      `json:"status"`
	Enrollment *Enrollment `json:"enrollment"`
}

type CancelResult struct {
	Status   Status `json:"status"`
	Refunded bool   `json:"refunded"`
	Late     bool   `json:"late"`
}

// ClassRoster is the grouped view of a class's enrollments, waitlist
// ordered by position.
type ClassRoster struct {
	Enrolled  []Enrollment `json:"enrolled"`
	Waitlist  []Enrollment `json:"waitlist"`
	Cancelled []Enrollment `json:"cancelled"`
}

type PromoteRequest struct {
	UserID int `json:"user_id" binding:"required"`
}
