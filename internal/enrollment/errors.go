package enrollment

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoActiveTariff      = errors.New("no active tariff covers the class date")
	ErrWeeklyLimit         = errors.New("weekly limit reached for this class type")
	ErrDailyLimit          = errors.New("daily class limit reached")
	ErrDuplicateEnrollment = errors.New("an active enrollment already exists for this class")
	ErrCapacityFull        = errors.New("class is at capacity")
	ErrClassCancelled      = errors.New("class is cancelled")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrNotEnrolled         = errors.New("user is not enrolled in this class")
	ErrNotWaitlisted       = errors.New("user is not waitlisted for this class")
	ErrNotCancelled        = errors.New("enrollment is not cancelled")
	// ErrTryAgain surfaces after the bounded lock-retry budget is spent.
	ErrTryAgain = errors.New("class is busy, try again")
)

// BookingWindowError rejects a booking attempted outside the plan's
// booking window. OpensAt is zero when the class has already started.
type BookingWindowError struct {
	OpensAt time.Time
}

func (e *BookingWindowError) Error() string {
	if e.OpensAt.IsZero() {
		return "class is in the past"
	}
	return fmt.Sprintf("booking window opens at %s", e.OpensAt.Format(time.RFC3339))
}
