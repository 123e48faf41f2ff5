package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"timesheet/internal/model"
)

// TaskRepository handles CRUD for tasks. Every query is scoped to the owning
// user.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Preload("TeamworkTask").
		Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// ListInRange returns the user's tasks overlapping [from, to). Tasks with a
// running timer have no end yet and are always included when they start before
// the range closes.
func (r *TaskRepository) ListInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).Preload("TeamworkTask").
		Where("user_id = ? AND start_at < ? AND (end_at IS NULL OR end_at >= ?)", userID, to, from).
		Order("start_at").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// FindRunning returns the user's task with an active timer, or ErrNotFound.
func (r *TaskRepository) FindRunning(ctx context.Context, userID int64) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Preload("TeamworkTask").
		Where("user_id = ? AND active_timer_running = ?", userID, true).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find running task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, userID, taskID int64) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
