package schedule

import "time"

type ClassType string

const (
	TypeWOD           ClassType = "WOD"
	TypeGymnastics    ClassType = "Gymnastics"
	TypeWeightlifting ClassType = "Weightlifting"
	TypeEndurance     ClassType = "Endurance"
	TypeFoundations   ClassType = "Foundations"
	TypeKids          ClassType = "Kids"
	TypeOpenBox       ClassType = "Open Box"
)

func (t ClassType) Valid() bool {
	switch t {
	case TypeWOD, TypeGymnastics, TypeWeightlifting, TypeEndurance,
		TypeFoundations, TypeKids, TypeOpenBox:
		return true
	}
	return false
}

// ClassInstance is one scheduled occurrence of a class. Capacity is
// always >= 1; WaitlistSeq backs the never-reused waitlist positions and
// is only bumped while the class row is locked.
type ClassInstance struct {
	ID          int       `db:"id" json:"id"`
	ClassDate   time.Time `db:"class_date" json:"class_date"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
	EndTime     time.Time `db:"end_time" json:"end_time"`
	ClassType   ClassType `db:"class_type" json:"class_type"`
	Capacity    int       `db:"capacity" json:"capacity"`
	CoachID     int       `db:"coach_id" json:"coach_id"`
	ZoneName    string    `db:"zone_name" json:"zone_name"`
	IsCancelled bool      `db:"is_cancelled" json:"is_cancelled"`
	WaitlistSeq int       `db:"waitlist_seq" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type ClassInstanceWithCounts struct {
	ClassInstance
	EnrolledCount int  `db:"enrolled_count" json:"enrolled_count"`
	WaitlistCount int  `db:"waitlist_count" json:"waitlist_count"`
	Available     int  `json:"available"`
	IsFull        bool `json:"is_full"`
}

type CreateClassRequest struct {
	ClassDate string `json:"class_date" binding:"required" validate:"required"`
	StartTime string `json:"start_time" binding:"required" validate:"required"`
	EndTime   string `json:"end_time" binding:"required" validate:"required"`
	ClassType string `json:"class_type" binding:"required" validate:"required"`
	Capacity  int    `json:"capacity" binding:"required,min=1" validate:"required,gte=1"`
	CoachID   int    `json:"coach_id" binding:"required" validate:"required"`
	ZoneName  string `json:"zone_name" binding:"required" validate:"required"`
}
