package tariff

import (
	"context"
	"errors"
	"time"

	"boxbook/internal/schedule"
)

type DenyReason string

const (
	DenyNoActiveTariff DenyReason = "no_active_tariff"
	DenyBookingWindow  DenyReason = "booking_window"
	DenyWeeklyLimit    DenyReason = "weekly_limit"
	DenyDailyLimit     DenyReason = "daily_limit"
)

// Decision is the outcome of a rule evaluation. On Allowed the matched
// assignment and plan are attached so the caller can debit the right
// assignment and read the plan's cancellation cutoff without a second
// lookup.
type Decision struct {
	Allowed    bool
	Reason     DenyReason
	OpensAt    *time.Time
	Assignment *TariffAssignment
	Plan       *TariffPlan
}

func denied(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// EnrollmentCounter reads a user's enrolled-class counts. Implemented by
// the enrollment store; the evaluator only ever reads through it. The
// class under evaluation is excluded from the counts, since the user is
// not (or no longer) occupying a seat in it.
type EnrollmentCounter interface {
	CountEnrolledByTypeInWeek(ctx context.Context, userID int, classType schedule.ClassType, weekStart, weekEnd time.Time, excludeClassID int) (int, error)
	CountEnrolledOnDate(ctx context.Context, userID int, date time.Time, excludeClassID int) (int, error)
}

// Evaluator decides whether a booking is permitted under a user's tariff,
// independent of class capacity. It is pure with respect to the roster:
// safe to invoke speculatively during waitlist promotion.
type Evaluator struct {
	tariffs Repository
	counts  EnrollmentCounter
	now     func() time.Time
}

func NewEvaluator(tariffs Repository, counts EnrollmentCounter) *Evaluator {
	return &Evaluator{
		tariffs: tariffs,
		counts:  counts,
		now:     time.Now,
	}
}

// NewEvaluatorAt pins the clock, for tests.
func NewEvaluatorAt(tariffs Repository, counts EnrollmentCounter, now func() time.Time) *Evaluator {
	return &Evaluator{tariffs: tariffs, counts: counts, now: now}
}

// Evaluate runs the tariff checks in order; the first failure
// short-circuits.
func (e *Evaluator) Evaluate(ctx context.Context, userID int, class *schedule.ClassInstance) (Decision, error) {
	assignment, err := e.tariffs.GetActiveAssignment(ctx, userID, class.ClassDate)
	if err != nil {
		if errors.Is(err, ErrNoActiveAssignment) {
			return denied(DenyNoActiveTariff), nil
		}
		return Decision{}, err
	}
	if !assignment.Covers(class.ClassDate) {
		return denied(DenyNoActiveTariff), nil
	}

	plan, err := e.tariffs.GetPlan(ctx, assignment.PlanID)
	if err != nil {
		return Decision{}, err
	}

	now := e.now()
	if !class.StartTime.After(now) {
		return denied(DenyBookingWindow), nil
	}
	opensAt := class.StartTime.Add(-plan.AdvanceBookingLeadTime())
	if now.Before(opensAt) {
		d := denied(DenyBookingWindow)
		d.OpensAt = &opensAt
		return d, nil
	}

	rules, err := e.tariffs.GetWeeklyRules(ctx, plan.ID)
	if err != nil {
		return Decision{}, err
	}
	for _, rule := range rules {
		if rule.ClassType != class.ClassType {
			continue
		}
		if !rule.Allowed {
			return denied(DenyWeeklyLimit), nil
		}
		if rule.MaxPerWeek != nil {
			weekStart, weekEnd := ISOWeekBounds(class.ClassDate)
			count, err := e.counts.CountEnrolledByTypeInWeek(ctx, userID, class.ClassType, weekStart, weekEnd, class.ID)
			if err != nil {
				return Decision{}, err
			}
			if count >= *rule.MaxPerWeek {
				return denied(DenyWeeklyLimit), nil
			}
		}
		break
	}

	if plan.MaxPerDay != nil {
		count, err := e.counts.CountEnrolledOnDate(ctx, userID, class.ClassDate, class.ID)
		if err != nil {
			return Decision{}, err
		}
		if count >= *plan.MaxPerDay {
			return denied(DenyDailyLimit), nil
		}
	}

	return Decision{Allowed: true, Assignment: assignment, Plan: plan}, nil
}

// ISOWeekBounds returns the Monday 00:00 of the ISO week containing d
// and the exclusive end (the following Monday), in d's location.
func ISOWeekBounds(d time.Time) (time.Time, time.Time) {
	weekday := int(d.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	year, month, day := d.Date()
	monday := time.Date(year, month, day, 0, 0, 0, 0, d.Location()).AddDate(0, 0, -(weekday - 1))
	return monday, monday.AddDate(0, 0, 7)
}
