package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"timesheet/internal/model"
)

// TeamworkTaskRepository handles the tracker-association rows, one per task.
type TeamworkTaskRepository struct {
	db *gorm.DB
}

func NewTeamworkTaskRepository(db *gorm.DB) *TeamworkTaskRepository {
	return &TeamworkTaskRepository{db: db}
}

func (r *TeamworkTaskRepository) FindByTaskID(ctx context.Context, taskID int64) (*model.TeamworkTask, error) {
	var row model.TeamworkTask
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find teamwork task: %w", err)
	}
	return &row, nil
}

// Upsert writes the association row for a task, replacing any existing one.
func (r *TeamworkTaskRepository) Upsert(ctx context.Context, row *model.TeamworkTask) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"teamwork_project_id", "teamwork_task_id", "teamwork_time_entry_id", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert teamwork task: %w", err)
	}
	return nil
}

// ListWithEntries returns every association that still claims a remote time
// entry, across all users.
func (r *TeamworkTaskRepository) ListWithEntries(ctx context.Context) ([]model.TeamworkTask, error) {
	var rows []model.TeamworkTask
	if err := r.db.WithContext(ctx).Where("teamwork_time_entry_id IS NOT NULL").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list teamwork tasks with entries: %w", err)
	}
	return rows, nil
}

func (r *TeamworkTaskRepository) DeleteByTaskID(ctx context.Context, taskID int64) error {
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Delete(&model.TeamworkTask{}).Error; err != nil {
		return fmt.Errorf("delete teamwork task: %w", err)
	}
	return nil
}
