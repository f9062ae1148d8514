package tariff

import (
	"context"
	"time"
)

type Repository interface {
	GetActiveAssignment(ctx context.Context, userID int, onDate time.Time) (*TariffAssignment, error)
	GetAssignment(ctx context.Context, id int) (*TariffAssignment, error)
	GetWeeklyRules(ctx context.Context, planID int) ([]WeeklyRule, error)
	GetPlan(ctx context.Context, planID int) (*TariffPlan, error)
	CreatePlan(ctx context.Context, req CreatePlan) (*TariffPlan, error)
	CreateWeeklyRule(ctx context.Context, planID int, rule CreateWeeklyRule) (*WeeklyRule, error)
	CreateAssignment(ctx context.Context, req CreateAssignment) (*TariffAssignment, error)
}

type CreatePlan struct {
	Name                 string
	AdvanceBookingHours  int
	CancellationCutoffHr int
	MaxPerDay            *int
}

type CreateWeeklyRule struct {
	ClassType  string
	Allowed    bool
	MaxPerWeek *int
}

type CreateAssignment struct {
	UserID         int
	PlanID         int
	StartsOn       time.Time
	ExpiresOn      time.Time
	InitialCredits *int
}
