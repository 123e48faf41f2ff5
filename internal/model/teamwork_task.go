package model

import "time"

// TeamworkTask links a local task to its counterpart in the external tracker.
// All remote ids are nullable: a task may be unmapped, and TimeEntryID is set
// only while a remote time entry actually exists for it.
type TeamworkTask struct {
	TaskID              int64 `gorm:"primaryKey;autoIncrement:false"`
	TeamworkProjectID   *int64
	TeamworkTaskID      *int64
	TeamworkTimeEntryID *int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SameAssociation reports whether both rows point at the same remote
// project/task pair.
func (t TeamworkTask) SameAssociation(other TeamworkTask) bool {
	return eqID(t.TeamworkProjectID, other.TeamworkProjectID) &&
		eqID(t.TeamworkTaskID, other.TeamworkTaskID)
}

func eqID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
