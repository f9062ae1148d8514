package enrollment

import (
	"context"
	"time"

	"boxbook/internal/schedule"
)

// Roster is the per-class view handed to a critical section while the
// class row lock is held. All mutations on it commit or roll back as one
// unit with the lock.
type Roster interface {
	Counts(ctx context.Context) (RosterCounts, error)
	// Active returns the user's enrolled or waitlist row, nil when none.
	Active(ctx context.Context, userID int) (*Enrollment, error)
	// Record returns the user's row regardless of status, nil when none.
	Record(ctx context.Context, userID int) (*Enrollment, error)
	// Admit flips (or creates) the user's row to enrolled. The caller
	// must have verified a free capacity slot under the same lock.
	Admit(ctx context.Context, userID int) (*Enrollment, error)
	// EnqueueWaitlist flips (or creates) the user's row to waitlist at
	// the tail. Positions are strictly increasing and never reused.
	EnqueueWaitlist(ctx context.Context, userID int) (*Enrollment, error)
	// NextWaitlisted returns the lowest-position waitlist row, nil when
	// the waitlist is empty. FIFO is the only tie-break.
	NextWaitlisted(ctx context.Context) (*Enrollment, error)
	SetStatus(ctx context.Context, enrollmentID int, status Status) error
}

// Store is the enrollment persistence boundary. WithClassLock serializes
// all roster mutations per class instance: fn runs exactly once with the
// class row locked, and lock acquisition is retried a bounded number of
// times before ErrTryAgain surfaces.
type Store interface {
	WithClassLock(ctx context.Context, classID int, fn func(Roster) error) error

	GetActive(ctx context.Context, userID, classID int) (*Enrollment, error)
	GetByID(ctx context.Context, id int) (*Enrollment, error)
	ListByClass(ctx context.Context, classID int) ([]Enrollment, error)
	ListByUser(ctx context.Context, userID int) ([]Enrollment, error)
	// DeleteCancelled scrubs one cancelled row (administrative history
	// cleanup); active rows are refused.
	DeleteCancelled(ctx context.Context, id int) error

	// Counters consumed by the tariff rule evaluator.
	CountEnrolledByTypeInWeek(ctx context.Context, userID int, classType schedule.ClassType, weekStart, weekEnd time.Time, excludeClassID int) (int, error)
	CountEnrolledOnDate(ctx context.Context, userID int, date time.Time, excludeClassID int) (int, error)
}
