package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrClassNotFound = errors.New("class instance not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const classColumns = `id, class_date, start_time, end_time, class_type, capacity, coach_id, zone_name, is_cancelled, waitlist_seq, created_at`

func (r *repository) CreateClassInstance(ctx context.Context, req CreateClassInstance) (*ClassInstance, error) {
	query := `
		INSERT INTO class_instances (class_date, start_time, end_time, class_type, capacity, coach_id, zone_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + classColumns

	var class ClassInstance
	err := r.db.GetContext(ctx, &class, query,
		req.ClassDate, req.StartTime, req.EndTime, req.ClassType, req.Capacity, req.CoachID, req.ZoneName)
	if err != nil {
		return nil, err
	}

	return &class, nil
}

func (r *repository) GetClassInstance(ctx context.Context, id int) (*ClassInstance, error) {
	query := `SELECT ` + classColumns + ` FROM class_instances WHERE id = $1`

	var class ClassInstance
	err := r.db.GetContext(ctx, &class, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}

	return &class, nil
}

func (r *repository) ListByDateRange(ctx context.Context, from, to time.Time) ([]ClassInstance, error) {
	query := `
		SELECT ` + classColumns + `
		FROM class_instances
		WHERE class_date >= $1 AND class_date <= $2
		ORDER BY start_time ASC`

	var classes []ClassInstance
	err := r.db.SelectContext(ctx, &classes, query, from, to)
	if err != nil {
		return nil, err
	}

	return classes, nil
}

func (r *repository) ListWithCounts(ctx context.Context, from, to time.Time) ([]ClassInstanceWithCounts, error) {
	query := `
		SELECT
			c.id, c.class_date, c.start_time, c.end_time, c.class_type, c.capacity,
			c.coach_id, c.zone_name, c.is_cancelled, c.waitlist_seq, c.created_at,
			COUNT(e.id) FILTER (WHERE e.status = 'enrolled') AS enrolled_count,
			COUNT(e.id) FILTER (WHERE e.status = 'waitlist') AS waitlist_count
		FROM class_instances c
		LEFT JOIN enrollments e ON e.class_instance_id = c.id
		WHERE c.class_date >= $1 AND c.class_date <= $2
		GROUP BY c.id
		ORDER BY c.start_time ASC`

	var classes []ClassInstanceWithCounts
	err := r.db.SelectContext(ctx, &classes, query, from, to)
	if err != nil {
		return nil, err
	}

	for i := range classes {
		classes[i].Available = classes[i].Capacity - classes[i].EnrolledCount
		classes[i].IsFull = classes[i].Available <= 0
	}

	return classes, nil
}

func (r *repository) CancelClassInstance(ctx context.Context, id int) error {
	query := `UPDATE class_instances SET is_cancelled = TRUE WHERE id = $1 AND is_cancelled = FALSE`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrClassNotFound
	}

	return nil
}
