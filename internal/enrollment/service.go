package enrollment

import (
	"context"
	"errors"
	"time"

	"boxbook/internal/ledger"
	"boxbook/internal/logger"
	"boxbook/internal/metrics"
	"boxbook/internal/schedule"
	"boxbook/internal/tariff"
)

// Notifier dispatches fire-and-forget waitlist events. Delivery is the
// dispatcher's concern; failures are never retried here.
type Notifier interface {
	WaitlistPromoted(ctx context.Context, userID, classID int)
	WaitlistDropped(ctx context.Context, userID, classID int)
}

type Service interface {
	Enroll(ctx context.Context, userID, classID int) (*Result, error)
	Cancel(ctx context.Context, userID, classID int) (*CancelResult, error)
	MoveToWaitlist(ctx context.Context, userID, classID int) (*Result, error)
	Reinstate(ctx context.Context, userID, classID int) (*Result, error)
	Promote(ctx context.Context, userID, classID int) (*Result, error)
	WaitlistCancel(ctx context.Context, userID, classID int) (*CancelResult, error)
	GetClassRoster(ctx context.Context, classID int) (*ClassRoster, error)
	GetUserEnrollments(ctx context.Context, userID int) ([]Enrollment, error)
	DeleteCancelledRecord(ctx context.Context, enrollmentID int) error
}

type service struct {
	store    Store
	classes  schedule.Repository
	tariffs  tariff.Repository
	credits  ledger.Ledger
	eval     *tariff.Evaluator
	notifier Notifier
	now      func() time.Time
}

func NewService(
	store Store,
	classes schedule.Repository,
	tariffs tariff.Repository,
	credits ledger.Ledger,
	eval *tariff.Evaluator,
	notifier Notifier,
) Service {
	return &service{
		store:    store,
		classes:  classes,
		tariffs:  tariffs,
		credits:  credits,
		eval:     eval,
		notifier: notifier,
		now:      time.Now,
	}
}

const (
	eventPromoted = "promoted"
	eventDropped  = "dropped"
)

type event struct {
	typ    string
	userID int
}

// ledgerOp records a committed ledger mutation made inside a class
// section, so an aborted section can be compensated.
type ledgerOp struct {
	assignmentID int
	enrollmentID int
	delta        int
}

func (s *service) Enroll(ctx context.Context, userID, classID int) (*Result, error) {
	class, err := s.classes.GetClassInstance(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.IsCancelled {
		return nil, ErrClassCancelled
	}

	dec, err := s.eval.Evaluate(ctx, userID, class)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, denialError(dec)
	}

	var res *Result
	var ops []ledgerOp
	err = s.store.WithClassLock(ctx, classID, func(r Roster) error {
		active, err := r.Active(ctx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrDuplicateEnrollment
		}
		return s.admitOrQueue(ctx, r, userID, class, dec, &res, &ops)
	})
	if err != nil {
		s.compensate(ctx, ops)
		return nil, err
	}

	metrics.RecordEnrollment(string(res.Status))
	return res, nil
}

// admitOrQueue is the shared capacity-check-then-admit-or-queue tail of
// Enroll and Reinstate. The roster row only commits after the debit has
// settled, so a failed debit never leaves an admitted-but-unpaid
// enrollment; waitlisting never debits.
func (s *service) admitOrQueue(ctx context.Context, r Roster, userID int, class *schedule.ClassInstance, dec tariff.Decision, res **Result, ops *[]ledgerOp) error {
	counts, err := r.Counts(ctx)
	if err != nil {
		return err
	}

	if counts.Enrolled < class.Capacity {
		rec, err := r.Admit(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := s.credits.Debit(ctx, dec.Assignment.ID, rec.ID, ledger.ReasonEnrollDebit); err != nil {
			return err
		}
		*ops = append(*ops, ledgerOp{dec.Assignment.ID, rec.ID, -1})
		*res = &Result{Status: StatusEnrolled, Enrollment: rec}
		return nil
	}

	rec, err := r.EnqueueWaitlist(ctx, userID)
	if err != nil {
		return err
	}
	*res = &Result{Status: StatusWaitlist, Enrollment: rec}
	return nil
}

func (s *service) Cancel(ctx context.Context, userID, classID int) (*CancelResult, error) {
	// Cancelling an existing enrollment stays possible on a cancelled
	// class.
	class, err := s.classes.GetClassInstance(ctx, classID)
	if err != nil {
		return nil, err
	}

	var res *CancelResult
	var events []event
	var ops []ledgerOp
	err = s.store.WithClassLock(ctx, classID, func(r Roster) error {
		active, err := r.Active(ctx, userID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrEnrollmentNotFound
		}

		if active.Status == StatusWaitlist {
			// No seat freed and no credit was ever taken; no promotion.
			if err := r.SetStatus(ctx, active.ID, StatusCancelled); err != nil {
				return err
			}
			res = &CancelResult{Status: StatusCancelled}
			return nil
		}

		if s.isLateCancel(ctx, userID, class) {
			if err := r.SetStatus(ctx, active.ID, StatusCancelledLate); err != nil {
				return err
			}
			res = &CancelResult{Status: StatusCancelledLate, Late: true}
		} else {
			refunded, assignmentID, err := s.credits.RefundEnrollment(ctx, active.ID, ledger.ReasonCancelRefund)
			if err != nil {
				return err
			}
			if refunded {
				ops = append(ops, ledgerOp{assignmentID, active.ID, 1})
			}
			if err := r.SetStatus(ctx, active.ID, StatusCancelled); err != nil {
				return err
			}
			res = &CancelResult{Status: StatusCancelled, Refunded: refunded}
		}

		return s.promoteNext(ctx, r, class, 0, &events, &ops)
	})
	if err != nil {
		s.compensate(ctx, ops)
		return nil, err
	}

	metrics.RecordCancellation(res.Late)
	s.emit(ctx, classID, events)
	return res, nil
}

func (s *service) MoveToWaitlist(ctx context.Context, userID, classID int) (*Result, error) {
	class, err := s.classes.GetClassInstance(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.IsCancelled {
		return nil, ErrClassCancelled
	}

	var res *Result
	var events []event
	var ops []ledgerOp
	err = s.store.WithClassLock(ctx, classID, func(r Roster) error {
		active, err := r.Active(ctx, userID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrEnrollmentNotFound
		}
		if active.Status != StatusEnrolled {
			return ErrNotEnrolled
		}

		// Vacating a paid seat returns the credit before the user joins
		// the tail of the queue.
		refunded, assignmentID, err := s.credits.RefundEnrollment(ctx, active.ID, ledger.ReasonVacateRefund)
		if err != nil {
			return err
		}
		if refunded {
			ops = append(ops, ledgerOp{assignmentID, active.ID, 1})
		}

		rec, err := r.EnqueueWaitlist(ctx, userID)
		if err != nil {
			return err
		}
		res = &Result{Status: StatusWaitlist, Enrollment: rec}

		return s.promoteNext(ctx, r, class, userID, &events, &ops)
	})
	if err != nil {
		s.compensate(ctx, ops)
		return nil, err
	}

	s.emit(ctx, classID, events)
	return res, nil
}

func (s *service) Reinstate(ctx context.Context, userID, classID int) (*Result, error) {
	class, err := s.classes.GetClassInstance(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.IsCancelled {
		return nil, ErrClassCancelled
	}

	dec, err := s.eval.Evaluate(ctx, userID, class)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, denialError(dec)
	}

	var res *Result
	var ops []ledgerOp
	err = s.store.WithClassLock(ctx, classID, func(r Roster) error {
		rec, err := r.Record(ctx, userID)
		if err != nil {
			return err
		}
		if rec == nil {
			return ErrEnrollmentNotFound
		}
		if rec.Status.Active() {
			return ErrDuplicateEnrollment
		}
		// The server decides: same capacity-check path as Enroll, so the
		// caller comes back as enrolled or waitlisted depending on room.
		return s.admitOrQueue(ctx, r, userID, class, dec, &res, &ops)
	})
	if err != nil {
		s.compensate(ctx, ops)
		return nil, err
	}

	metrics.RecordEnrollment(string(res.Status))
	return res, nil
}

func (s *service) Promote(ctx context.Context, userID, classID int) (*Result, error) {
	class, err := s.classes.GetClassInstance(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.IsCancelled {
		return nil, ErrClassCancelled
	}

	dec, err := s.eval.Evaluate(ctx, userID, class)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, denialError(dec)
	}

	var res *Result
	var events []event
	var ops []ledgerOp
	err = s.store.WithClassLock(ctx, classID, func(r Roster) error {
		counts, err := r.Counts(ctx)
		if err != nil {
			return err
		}
		if counts.Enrolled >= class.Capacity {
			return ErrCapacityFull
		}

		active, err := r.Active(ctx, userID)
		if err != nil {
			return err
		}
		if active == nil || active.Status != StatusWaitlist {
			return ErrNotWaitlisted
		}

		if _, err := s.credits.Debit(ctx, dec.Assignment.ID, active.ID, ledger.ReasonPromotionDebit); err != nil {
			return err
		}
		ops = append(ops, ledgerOp{dec.Assignment.ID, active.ID, -1})

		rec, err := r.Admit(ctx, userID)
		if err != nil {
			return err
		}
		res = &Result{Status: StatusEnrolled, Enrollment: rec}
		events = append(events, event{eventPromoted, userID})
		return nil
	})
	if err != nil {
		s.compensate(ctx, ops)
		return nil, err
	}

	s.emit(ctx, classID, events)
	return res, nil
}

func (s *service) WaitlistCancel(ctx context.Context, userID, classID int) (*CancelResult, error) {
	if _, err := s.classes.GetClassInstance(ctx, classID); err != nil {
		return nil, err
	}

	var res *CancelResult
	err := s.store.WithClassLock(ctx, classID, func(r Roster) error {
		active, err := r.Active(ctx, userID)
		if err != nil {
			return err
		}
		if active == nil {
			return ErrEnrollmentNotFound
		}
		if active.Status != StatusWaitlist {
			return ErrNotWaitlisted
		}

		if err := r.SetStatus(ctx, active.ID, StatusCancelled); err != nil {
			return err
		}
		res = &CancelResult{Status: StatusCancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *service) GetClassRoster(ctx context.Context, classID int) (*ClassRoster, error) {
	if _, err := s.classes.GetClassInstance(ctx, classID); err != nil {
		return nil, err
	}

	list, err := s.store.ListByClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	roster := &ClassRoster{
		Enrolled:  []Enrollment{},
		Waitlist:  []Enrollment{},
		Cancelled: []Enrollment{},
	}
	for _, e := range list {
		switch e.Status {
		case StatusEnrolled:
			roster.Enrolled = append(roster.Enrolled, e)
		case StatusWaitlist:
			roster.Waitlist = append(roster.Waitlist, e)
		default:
			roster.Cancelled = append(roster.Cancelled, e)
		}
	}
	return roster, nil
}

func (s *service) GetUserEnrollments(ctx context.Context, userID int) ([]Enrollment, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *service) DeleteCancelledRecord(ctx context.Context, enrollmentID int) error {
	return s.store.DeleteCancelled(ctx, enrollmentID)
}

// promoteNext backfills freed seats from the waitlist, FIFO. Candidates
// whose eligibility lapsed or whose credits ran out are dropped to
// cancelled so they never block the queue. At most one promotion per
// freed seat. skipUserID shields a member who just vacated their seat
// for the waitlist tail from being handed it straight back; reaching
// them means nobody else is queued, so the scan stops.
func (s *service) promoteNext(ctx context.Context, r Roster, class *schedule.ClassInstance, skipUserID int, events *[]event, ops *[]ledgerOp) error {
	for {
		counts, err := r.Counts(ctx)
		if err != nil {
			return err
		}
		if counts.Enrolled >= class.Capacity {
			return nil
		}

		cand, err := r.NextWaitlisted(ctx)
		if err != nil {
			return err
		}
		if cand == nil {
			return nil
		}
		if cand.UserID == skipUserID {
			return nil
		}

		dec, err := s.eval.Evaluate(ctx, cand.UserID, class)
		if err != nil {
			return err
		}
		if !dec.Allowed {
			if err := r.SetStatus(ctx, cand.ID, StatusCancelled); err != nil {
				return err
			}
			*events = append(*events, event{eventDropped, cand.UserID})
			continue
		}

		if _, err := s.credits.Debit(ctx, dec.Assignment.ID, cand.ID, ledger.ReasonPromotionDebit); err != nil {
			if errors.Is(err, ledger.ErrNoCredits) {
				if err := r.SetStatus(ctx, cand.ID, StatusCancelled); err != nil {
					return err
				}
				*events = append(*events, event{eventDropped, cand.UserID})
				continue
			}
			return err
		}
		*ops = append(*ops, ledgerOp{dec.Assignment.ID, cand.ID, -1})

		if _, err := r.Admit(ctx, cand.UserID); err != nil {
			return err
		}
		*events = append(*events, event{eventPromoted, cand.UserID})
		return nil
	}
}

// isLateCancel compares now against the plan's cancellation cutoff. A
// member whose plan can no longer be resolved is treated as cancelling
// early; the refund path then decides from the ledger whether anything
// is owed.
func (s *service) isLateCancel(ctx context.Context, userID int, class *schedule.ClassInstance) bool {
	assignment, err := s.tariffs.GetActiveAssignment(ctx, userID, class.ClassDate)
	if err != nil {
		return false
	}
	plan, err := s.tariffs.GetPlan(ctx, assignment.PlanID)
	if err != nil {
		logger.Error("failed to resolve plan for cancellation cutoff", "user_id", userID, "error", err)
		return false
	}
	return s.now().After(class.StartTime.Add(-plan.CancellationCutoff()))
}

// compensate reverses committed ledger mutations after an aborted class
// section, newest first.
func (s *service) compensate(ctx context.Context, ops []ledgerOp) {
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		var err error
		if op.delta < 0 {
			_, err = s.credits.Refund(ctx, op.assignmentID, op.enrollmentID, ledger.ReasonReversal)
		} else {
			_, err = s.credits.Debit(ctx, op.assignmentID, op.enrollmentID, ledger.ReasonReversal)
		}
		if err != nil {
			logger.Error("failed to compensate ledger operation",
				"assignment_id", op.assignmentID,
				"enrollment_id", op.enrollmentID,
				"delta", op.delta,
				"error", err,
			)
		}
	}
}

func (s *service) emit(ctx context.Context, classID int, events []event) {
	for _, ev := range events {
		switch ev.typ {
		case eventPromoted:
			metrics.RecordPromotion()
			if s.notifier != nil {
				s.notifier.WaitlistPromoted(ctx, ev.userID, classID)
			}
		case eventDropped:
			metrics.RecordWaitlistDrop()
			if s.notifier != nil {
				s.notifier.WaitlistDropped(ctx, ev.userID, classID)
			}
		}
	}
}

func denialError(dec tariff.Decision) error {
	switch dec.Reason {
	case tariff.DenyNoActiveTariff:
		return ErrNoActiveTariff
	case tariff.DenyBookingWindow:
		if dec.OpensAt != nil {
			return &BookingWindowError{OpensAt: *dec.OpensAt}
		}
		return &BookingWindowError{}
	case tariff.DenyWeeklyLimit:
		return ErrWeeklyLimit
	case tariff.DenyDailyLimit:
		return ErrDailyLimit
	}
	return errors.New("booking denied")
}
