package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"boxbook/internal/logger"
	"boxbook/internal/schedule"
)

const (
	maxLockAttempts  = 3
	lockRetryBackoff = 25 * time.Millisecond
)

type store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

const enrollmentColumns = `id, class_instance_id, user_id, status, waitlist_position, created_at, status_changed_at`

// WithClassLock opens a transaction, takes the class row lock, and runs
// fn against a roster bound to that transaction. Only failures of the
// lock acquisition itself are retried; once fn has started, the section
// runs to completion and its error propagates untouched.
func (s *store) WithClassLock(ctx context.Context, classID int, fn func(Roster) error) error {
	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		locked, err := s.runLocked(ctx, classID, fn)
		if locked || err == nil {
			return err
		}
		if !isLockConflict(err) {
			return err
		}
		logger.Warn("class lock conflict, retrying", "class_id", classID, "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * lockRetryBackoff):
		}
	}
	return ErrTryAgain
}

// runLocked reports whether the lock was acquired (after which fn's
// outcome is final) alongside the section's error.
func (s *store) runLocked(ctx context.Context, classID int, fn func(Roster) error) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var id int
	err = tx.GetContext(ctx, &id, `SELECT id FROM class_instances WHERE id = $1 FOR UPDATE`, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, schedule.ErrClassNotFound
		}
		return false, err
	}

	if err := fn(&sqlRoster{tx: tx, classID: classID}); err != nil {
		return true, err
	}

	return true, tx.Commit()
}

func isLockConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure, deadlock_detected, lock_not_available
		return pqErr.Code == "40001" || pqErr.Code == "40P01" || pqErr.Code == "55P03"
	}
	return false
}

// sqlRoster scopes roster mutations to one class inside the locked
// transaction.
type sqlRoster struct {
	tx      *sqlx.Tx
	classID int
}

func (r *sqlRoster) Counts(ctx context.Context) (RosterCounts, error) {
	var counts RosterCounts
	err := r.tx.GetContext(ctx, &counts,
		`SELECT
			COUNT(*) FILTER (WHERE status = 'enrolled') AS enrolled,
			COUNT(*) FILTER (WHERE status = 'waitlist') AS waitlisted
		 FROM enrollments
		 WHERE class_instance_id = $1`,
		r.classID,
	)
	return counts, err
}

func (r *sqlRoster) Active(ctx context.Context, userID int) (*Enrollment, error) {
	var e Enrollment
	err := r.tx.GetContext(ctx, &e,
		`SELECT `+enrollmentColumns+`
		 FROM enrollments
		 WHERE class_instance_id = $1 AND user_id = $2 AND status IN ('enrolled', 'waitlist')`,
		r.classID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *sqlRoster) Record(ctx context.Context, userID int) (*Enrollment, error) {
	var e Enrollment
	err := r.tx.GetContext(ctx, &e,
		`SELECT `+enrollmentColumns+`
		 FROM enrollments
		 WHERE class_instance_id = $1 AND user_id = $2`,
		r.classID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *sqlRoster) Admit(ctx context.Context, userID int) (*Enrollment, error) {
	var e Enrollment
	err := r.tx.GetContext(ctx, &e,
		`INSERT INTO enrollments (class_instance_id, user_id, status)
		 VALUES ($1, $2, 'enrolled')
		 ON CONFLICT (class_instance_id, user_id) DO UPDATE
		 SET status = 'enrolled', waitlist_position = NULL, status_changed_at = NOW()
		 RETURNING `+enrollmentColumns,
		r.classID, userID,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *sqlRoster) EnqueueWaitlist(ctx context.Context, userID int) (*Enrollment, error) {
	// The per-class sequence lives on the locked class row, so positions
	// are strictly increasing and never reused even after rows leave the
	// waitlist.
	var position int
	err := r.tx.GetContext(ctx, &position,
		`UPDATE class_instances SET waitlist_seq = waitlist_seq + 1 WHERE id = $1 RETURNING waitlist_seq`,
		r.classID,
	)
	if err != nil {
		return nil, err
	}

	var e Enrollment
	err = r.tx.GetContext(ctx, &e,
		`INSERT INTO enrollments (class_instance_id, user_id, status, waitlist_position)
		 VALUES ($1, $2, 'waitlist', $3)
		 ON CONFLICT (class_instance_id, user_id) DO UPDATE
		 SET status = 'waitlist', waitlist_position = $3, status_changed_at = NOW()
		 RETURNING `+enrollmentColumns,
		r.classID, userID, position,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *sqlRoster) NextWaitlisted(ctx context.Context) (*Enrollment, error) {
	var e Enrollment
	err := r.tx.GetContext(ctx, &e,
		`SELECT `+enrollmentColumns+`
		 FROM enrollments
		 WHERE class_instance_id = $1 AND status = 'waitlist'
		 ORDER BY waitlist_position ASC
		 LIMIT 1`,
		r.classID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *sqlRoster) SetStatus(ctx context.Context, enrollmentID int, status Status) error {
	result, err := r.tx.ExecContext(ctx,
		`UPDATE enrollments
		 SET status = $2,
		     waitlist_position = CASE WHEN $2 = 'waitlist' THEN waitlist_position ELSE NULL END,
		     status_changed_at = NOW()
		 WHERE id = $1 AND class_instance_id = $3`,
		enrollmentID, status, r.classID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

func (s *store) GetActive(ctx context.Context, userID, classID int) (*Enrollment, error) {
	var e Enrollment
	err := s.db.GetContext(ctx, &e,
		`SELECT `+enrollmentColumns+`
		 FROM enrollments
		 WHERE class_instance_id = $1 AND user_id = $2 AND status IN ('enrolled', 'waitlist')`,
		classID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (s *store) GetByID(ctx context.Context, id int) (*Enrollment, error) {
	var e Enrollment
	err := s.db.GetContext(ctx, &e,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *store) ListByClass(ctx context.Context, classID int) ([]Enrollment, error) {
	var list []Enrollment
	err := s.db.SelectContext(ctx, &list,
		`SELECT `+enrollmentColumns+`
		 FROM enrollments
		 WHERE class_instance_id = $1
		 ORDER BY status ASC, waitlist_position ASC NULLS LAST, created_at ASC`,
		classID,
	)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *store) ListByUser(ctx context.Context, userID int) ([]Enrollment, error) {
	var list []Enrollment
	err := s.db.SelectContext(ctx, &list,
		`SELECT `+enrollmentColumns+`
		 FROM enrollments
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *store) DeleteCancelled(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE id = $1 AND status IN ('cancelled', 'cancelled_late')`,
		id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNotCancelled
	}
	return nil
}

func (s *store) CountEnrolledByTypeInWeek(ctx context.Context, userID int, classType schedule.ClassType, weekStart, weekEnd time.Time, excludeClassID int) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
		 FROM enrollments e
		 JOIN class_instances c ON c.id = e.class_instance_id
		 WHERE e.user_id = $1
		   AND e.status = 'enrolled'
		   AND c.class_type = $2
		   AND c.class_date >= $3
		   AND c.class_date < $4
		   AND c.id <> $5`,
		userID, classType, weekStart, weekEnd, excludeClassID,
	)
	return count, err
}

func (s *store) CountEnrolledOnDate(ctx context.Context, userID int, date time.Time, excludeClassID int) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
		 FROM enrollments e
		 JOIN class_instances c ON c.id = e.class_instance_id
		 WHERE e.user_id = $1
		   AND e.status = 'enrolled'
		   AND c.class_date = $2
		   AND c.id <> $3`,
		userID, date, excludeClassID,
	)
	return count, err
}
