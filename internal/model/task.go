package model

import "time"

// Task is a single work period on the timesheet. EndAt stays nil while the
// task's timer is running; at most one task per user has ActiveTimerRunning set.
type Task struct {
	ID                 int64 `gorm:"primaryKey"`
	UserID             int64 `gorm:"index"`
	StartAt            time.Time
	EndAt              *time.Time
	Title              string
	Description        string
	ActiveTimerRunning bool `gorm:"default:false"`
	LogTime            bool `gorm:"default:false"`
	Billable           bool `gorm:"default:false"`
	Timezone           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	TeamworkTask       *TeamworkTask `gorm:"foreignKey:TaskID"`
}

// Duration returns the elapsed time of the task; a still-running task is
// measured up to now.
func (t Task) Duration(now time.Time) time.Duration {
	end := now
	if t.EndAt != nil {
		end = *t.EndAt
	}
	if end.Before(t.StartAt) {
		return 0
	}
	return end.Sub(t.StartAt)
}

// Location resolves the task's stored IANA timezone, falling back to UTC when
// it is empty or unknown.
func (t Task) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
