package tariff

import (
	"time"

	"boxbook/internal/schedule"
)

type AssignmentStatus string

const (
	StatusPending AssignmentStatus = "pending"
	StatusActive  AssignmentStatus = "active"
	StatusExpired AssignmentStatus = "expired"
)

// TariffPlan is a purchasable entitlement. Credit plans grant a finite
// number of credits per assignment; maxPerDay plans are unlimited but
// capped per calendar day. The two modes are mutually exclusive.
type TariffPlan struct {
	ID                   int       `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	AdvanceBookingHours  int       `db:"advance_booking_hours" json:"advance_booking_hours"`
	CancellationCutoffHr int       `db:"cancellation_cutoff_hours" json:"cancellation_cutoff_hours"`
	MaxPerDay            *int      `db:"max_per_day" json:"max_per_day,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

func (p *TariffPlan) AdvanceBookingLeadTime() time.Duration {
	return time.Duration(p.AdvanceBookingHours) * time.Hour
}

func (p *TariffPlan) CancellationCutoff() time.Duration {
	return time.Duration(p.CancellationCutoffHr) * time.Hour
}

// TariffAssignment grants one user a plan for a date window.
// RemainingCredits is NULL for maxPerDay-governed plans; the credit
// ledger owns the column once the assignment exists.
type TariffAssignment struct {
	ID                     int              `db:"id" json:"id"`
	UserID                 int              `db:"user_id" json:"user_id"`
	PlanID                 int              `db:"plan_id" json:"plan_id"`
	StartsOn               time.Time        `db:"starts_on" json:"starts_on"`
	ExpiresOn              time.Time        `db:"expires_on" json:"expires_on"`
	CustomExpiresOn        *time.Time       `db:"custom_expires_on" json:"custom_expires_on,omitempty"`
	RemainingCredits       *int             `db:"remaining_credits" json:"remaining_credits,omitempty"`
	Status                 AssignmentStatus `db:"status" json:"status"`
	ProvisionalAccessUntil *time.Time       `db:"provisional_access_until" json:"provisional_access_until,omitempty"`
	CreatedAt              time.Time        `db:"created_at" json:"created_at"`
}

// EffectiveExpiry is the custom override when set, the plain expiry
// otherwise.
func (a *TariffAssignment) EffectiveExpiry() time.Time {
	if a.CustomExpiresOn != nil {
		return *a.CustomExpiresOn
	}
	return a.ExpiresOn
}

// Covers reports whether the assignment entitles the user on the given
// date, including the provisional-access grace window.
func (a *TariffAssignment) Covers(date time.Time) bool {
	if date.Before(a.StartsOn) {
		return false
	}
	if !date.After(a.EffectiveExpiry()) {
		return true
	}
	return a.ProvisionalAccessUntil != nil && !date.After(*a.ProvisionalAccessUntil)
}

// WeeklyRule is a per-class-type exception on a plan. Absence of a rule
// for a type means allowed, unlimited.
type WeeklyRule struct {
	ID         int                `db:"id" json:"id"`
	PlanID     int                `db:"plan_id" json:"plan_id"`
	ClassType  schedule.ClassType `db:"class_type" json:"class_type"`
	Allowed    bool               `db:"allowed" json:"allowed"`
	MaxPerWeek *int               `db:"max_per_week" json:"max_per_week,omitempty"`
}

type CreatePlanRequest struct {
	Name                 string `json:"name" binding:"required" validate:"required"`
	AdvanceBookingHours  int    `json:"advance_booking_hours" validate:"gte=0"`
	CancellationCutoffHr int    `json:"cancellation_cutoff_hours" validate:"gte=0"`
	MaxPerDay            *int   `json:"max_per_day,omitempty" validate:"omitempty,gte=1"`
}

type CreateWeeklyRuleRequest struct {
	ClassType  string `json:"class_type" binding:"required" validate:"required"`
	Allowed    bool   `json:"allowed"`
	MaxPerWeek *int   `json:"max_per_week,omitempty" validate:"omitempty,gte=1"`
}

type CreateAssignmentRequest struct {
	UserID         int    `json:"user_id" binding:"required" validate:"required"`
	PlanID         int    `json:"plan_id" binding:"required" validate:"required"`
	StartsOn       string `json:"starts_on" binding:"required" validate:"required"`
	ExpiresOn      string `json:"expires_on" binding:"required" validate:"required"`
	InitialCredits *int   `json:"initial_credits,omitempty" validate:"omitempty,gte=0"`
}
