package schedule

import (
	"context"
	"time"
)

type Repository interface {
	CreateClassInstance(ctx context.Context, req CreateClassInstance) (*ClassInstance, error)
	GetClassInstance(ctx context.Context, id int) (*ClassInstance, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]ClassInstance, error)
	ListWithCounts(ctx context.Context, from, to time.Time) ([]ClassInstanceWithCounts, error)
	CancelClassInstance(ctx context.Context, id int) error
}

// CreateClassInstance is the parsed form of CreateClassRequest.
type CreateClassInstance struct {
	ClassDate time.Time
	StartTime time.Time
	EndTime   time.Time
	ClassType ClassType
	Capacity  int
	CoachID   int
	ZoneName  string
}
