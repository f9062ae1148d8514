package tariff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTariffMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(sqlx.NewDb(db, "postgres")), mock
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "plan_id", "starts_on", "expires_on", "custom_expires_on",
		"remaining_credits", "status", "provisional_access_until", "created_at",
	})
}

func TestGetActiveAssignment(t *testing.T) {
	repo, mock := setupTariffMock(t)

	onDate := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	starts := onDate.AddDate(0, -1, 0)
	expires := onDate.AddDate(0, 1, 0)

	mock.ExpectQuery(`FROM tariff_assignments`).
		WithArgs(42, onDate).
		WillReturnRows(assignmentRows().AddRow(
			5, 42, 2, starts, expires, nil, 10, "active", nil, starts,
		))

	assignment, err := repo.GetActiveAssignment(context.Background(), 42, onDate)
	require.NoError(t, err)
	assert.Equal(t, 5, assignment.ID)
	assert.Equal(t, 2, assignment.PlanID)
	require.NotNil(t, assignment.RemainingCredits)
	assert.Equal(t, 10, *assignment.RemainingCredits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveAssignment_NoneCoversDate(t *testing.T) {
	repo, mock := setupTariffMock(t)

	onDate := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM tariff_assignments`).
		WithArgs(42, onDate).
		WillReturnRows(assignmentRows())

	_, err := repo.GetActiveAssignment(context.Background(), 42, onDate)
	assert.True(t, errors.Is(err, ErrNoActiveAssignment))
}

func TestGetPlan(t *testing.T) {
	repo, mock := setupTariffMock(t)

	mock.ExpectQuery(`FROM tariff_plans`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "advance_booking_hours", "cancellation_cutoff_hours", "max_per_day", "created_at",
		}).AddRow(2, "12 credits", 336, 2, nil, time.Now()))

	plan, err := repo.GetPlan(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "12 credits", plan.Name)
	assert.Equal(t, 14*24*time.Hour, plan.AdvanceBookingLeadTime())
	assert.Equal(t, 2*time.Hour, plan.CancellationCutoff())
	assert.Nil(t, plan.MaxPerDay)
}

func TestGetPlan_NotFound(t *testing.T) {
	repo, mock := setupTariffMock(t)

	mock.ExpectQuery(`FROM tariff_plans`).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetPlan(context.Background(), 99)
	assert.True(t, errors.Is(err, ErrPlanNotFound))
}

func TestGetWeeklyRules(t *testing.T) {
	repo, mock := setupTariffMock(t)

	max := 2
	mock.ExpectQuery(`FROM weekly_rules`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_id", "class_type", "allowed", "max_per_week"}).
			AddRow(1, 2, "Gymnastics", true, max).
			AddRow(2, 2, "Kids", false, nil))

	rules, err := repo.GetWeeklyRules(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.True(t, rules[0].Allowed)
	require.NotNil(t, rules[0].MaxPerWeek)
	assert.Equal(t, 2, *rules[0].MaxPerWeek)

	assert.False(t, rules[1].Allowed)
	assert.Nil(t, rules[1].MaxPerWeek)
}

func TestCreateAssignment(t *testing.T) {
	repo, mock := setupTariffMock(t)

	starts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := starts.AddDate(0, 1, 0)
	credits := 12

	mock.ExpectQuery(`INSERT INTO tariff_assignments \(user_id, plan_id, starts_on, expires_on, remaining_credits, status\)`).
		WithArgs(42, 2, starts, expires, credits).
		WillReturnRows(assignmentRows().AddRow(
			5, 42, 2, starts, expires, nil, credits, "active", nil, starts,
		))

	assignment, err := repo.CreateAssignment(context.Background(), CreateAssignment{
		UserID: 42, PlanID: 2, StartsOn: starts, ExpiresOn: expires, InitialCredits: &credits,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, assignment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentCovers(t *testing.T) {
	starts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	grace := time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC)
	custom := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	a := TariffAssignment{StartsOn: starts, ExpiresOn: expires}

	assert.False(t, a.Covers(starts.AddDate(0, 0, -1)))
	assert.True(t, a.Covers(starts))
	assert.True(t, a.Covers(expires))
	assert.False(t, a.Covers(expires.AddDate(0, 0, 1)))

	a.ProvisionalAccessUntil = &grace
	assert.True(t, a.Covers(expires.AddDate(0, 0, 3)))
	assert.False(t, a.Covers(grace.AddDate(0, 0, 1)))

	a.CustomExpiresOn = &custom
	assert.Equal(t, custom, a.EffectiveExpiry())
}
