package tariff

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNoActiveAssignment = errors.New("no active tariff assignment")
	ErrAssignmentNotFound = errors.New("tariff assignment not found")
	ErrPlanNotFound       = errors.New("tariff plan not found")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const assignmentColumns = `id, user_id, plan_id, starts_on, expires_on, custom_expires_on, remaining_credits, status, provisional_access_until, created_at`

// GetActiveAssignment returns the assignment covering the given date,
// counting the provisional-access grace window. The newest covering
// assignment wins when grants overlap.
func (r *repository) GetActiveAssignment(ctx context.Context, userID int, onDate time.Time) (*TariffAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM tariff_assignments
		WHERE user_id = $1
		  AND status <> 'expired'
		  AND starts_on <= $2
		  AND (COALESCE(custom_expires_on, expires_on) >= $2 OR provisional_access_until >= $2)
		ORDER BY starts_on DESC
		LIMIT 1`

	var assignment TariffAssignment
	err := r.db.GetContext(ctx, &assignment, query, userID, onDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveAssignment
		}
		return nil, err
	}

	return &assignment, nil
}

func (r *repository) GetAssignment(ctx context.Context, id int) (*TariffAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM tariff_assignments WHERE id = $1`

	var assignment TariffAssignment
	err := r.db.GetContext(ctx, &assignment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	return &assignment, nil
}

func (r *repository) GetWeeklyRules(ctx context.Context, planID int) ([]WeeklyRule, error) {
	query := `
		SELECT id, plan_id, class_type, allowed, max_per_week
		FROM weekly_rules
		WHERE plan_id = $1
		ORDER BY class_type ASC`

	var rules []WeeklyRule
	err := r.db.SelectContext(ctx, &rules, query, planID)
	if err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *repository) GetPlan(ctx context.Context, planID int) (*TariffPlan, error) {
	query := `
		SELECT id, name, advance_booking_hours, cancellation_cutoff_hours, max_per_day, created_at
		FROM tariff_plans
		WHERE id = $1`

	var plan TariffPlan
	err := r.db.GetContext(ctx, &plan, query, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return &plan, nil
}

func (r *repository) CreatePlan(ctx context.Context, req CreatePlan) (*TariffPlan, error) {
	query := `
		INSERT INTO tariff_plans (name, advance_booking_hours, cancellation_cutoff_hours, max_per_day)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, advance_booking_hours, cancellation_cutoff_hours, max_per_day, created_at`

	var plan TariffPlan
	err := r.db.GetContext(ctx, &plan, query,
		req.Name, req.AdvanceBookingHours, req.CancellationCutoffHr, req.MaxPerDay)
	if err != nil {
		return nil, err
	}

	return &plan, nil
}

func (r *repository) CreateWeeklyRule(ctx context.Context, planID int, rule CreateWeeklyRule) (*WeeklyRule, error) {
	query := `
		INSERT INTO weekly_rules (plan_id, class_type, allowed, max_per_week)
		VALUES ($1, $2, $3, $4)
		RETURNING id, plan_id, class_type, allowed, max_per_week`

	var created WeeklyRule
	err := r.db.GetContext(ctx, &created, query, planID, rule.ClassType, rule.Allowed, rule.MaxPerWeek)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) CreateAssignment(ctx context.Context, req CreateAssignment) (*TariffAssignment, error) {
	query := `
		INSERT INTO tariff_assignments (user_id, plan_id, starts_on, expires_on, remaining_credits, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		RETURNING ` + assignmentColumns

	var assignment TariffAssignment
	err := r.db.GetContext(ctx, &assignment, query,
		req.UserID, req.PlanID, req.StartsOn, req.ExpiresOn, req.InitialCredits)
	if err != nil {
		return nil, err
	}

	return &assignment, nil
}
