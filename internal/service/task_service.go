package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timesheet/internal/localid"
	"timesheet/internal/model"
	"timesheet/internal/repository"
)

var (
	ErrInvalidStart    = errors.New("task start is required")
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrNoRunningTimer  = errors.New("no timer is running")
)

// localIDKey scopes optimistic task ids in the registry.
const localIDKey = "task"

// resolveWait bounds how long an operation against a still-optimistic id will
// wait for the real id to arrive.
const resolveWait = 10 * time.Second

// TaskInput carries the fields of a create/update request. Pointer fields on
// the association are nullable remote ids.
type TaskInput struct {
	LocalID            int64 // negative placeholder from an optimistic create, 0 otherwise
	StartAt            time.Time
	EndAt              *time.Time
	Title              string
	Description        string
	ActiveTimerRunning bool
	LogTime            bool
	Billable           bool
	Timezone           string
	TeamworkProjectID  *int64
	TeamworkTaskID     *int64
}

// TaskService owns task mutations: validation, the one-running-timer
// invariant, time-entry reconciliation ordering, and optimistic-id bridging.
type TaskService struct {
	tasks    *repository.TaskRepository
	twTasks  *repository.TeamworkTaskRepository
	sync     *SyncService
	localIDs *localid.Registry
	now      func() time.Time
}

func NewTaskService(tasks *repository.TaskRepository, twTasks *repository.TeamworkTaskRepository, sync *SyncService, localIDs *localid.Registry) *TaskService {
	return &TaskService{
		tasks:    tasks,
		twTasks:  twTasks,
		sync:     sync,
		localIDs: localIDs,
		now:      time.Now,
	}
}

// Create validates and persists a new task, reconciling its time entry first
// so local state never claims an entry that was not created. A request with a
// negative LocalID registers the placeholder and publishes the real id once
// known, releasing any operation that raced ahead of the create.
func (s *TaskService) Create(ctx context.Context, user *model.User, input TaskInput) (*model.Task, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	if input.LocalID < 0 {
		s.localIDs.Add(localIDKey, input.LocalID)
	}

	if input.ActiveTimerRunning {
		if err := s.stopRunningTimer(ctx, user); err != nil {
			return nil, err
		}
	}

	task := &model.Task{
		UserID:             user.ID,
		StartAt:            input.StartAt,
		EndAt:              input.EndAt,
		Title:              input.Title,
		Description:        input.Description,
		ActiveTimerRunning: input.ActiveTimerRunning,
		LogTime:            input.LogTime,
		Billable:           input.Billable,
		Timezone:           input.Timezone,
	}
	pending := &model.TeamworkTask{
		TeamworkProjectID: input.TeamworkProjectID,
		TeamworkTaskID:    input.TeamworkTaskID,
	}

	if err := s.sync.SyncTimeEntry(ctx, task, nil, pending, user.Email); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	pending.TaskID = task.ID
	if err := s.twTasks.Upsert(ctx, pending); err != nil {
		return nil, err
	}
	task.TeamworkTask = pending

	if input.LocalID < 0 {
		s.localIDs.Update(localIDKey, input.LocalID, task.ID)
	}
	return task, nil
}

// Update applies a mutation to an existing task. Reconciliation runs against
// the previously stored association before anything is written locally.
func (s *TaskService) Update(ctx context.Context, user *model.User, taskID int64, input TaskInput) (*model.Task, error) {
	taskID, err := s.resolveID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}

	existing := task.TeamworkTask
	pending := &model.TeamworkTask{
		TaskID:            task.ID,
		TeamworkProjectID: input.TeamworkProjectID,
		TeamworkTaskID:    input.TeamworkTaskID,
	}
	if existing != nil {
		pending.TeamworkTimeEntryID = existing.TeamworkTimeEntryID
	}

	if input.ActiveTimerRunning && !task.ActiveTimerRunning {
		if err := s.stopRunningTimer(ctx, user); err != nil {
			return nil, err
		}
	}

	task.StartAt = input.StartAt
	task.EndAt = input.EndAt
	task.Title = input.Title
	task.Description = input.Description
	task.ActiveTimerRunning = input.ActiveTimerRunning
	task.LogTime = input.LogTime
	task.Billable = input.Billable
	if input.Timezone != "" {
		task.Timezone = input.Timezone
	}

	if err := s.sync.SyncTimeEntry(ctx, task, existing, pending, user.Email); err != nil {
		return nil, err
	}

	task.TeamworkTask = nil // avoid gorm writing the association row twice
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	if err := s.twTasks.Upsert(ctx, pending); err != nil {
		return nil, err
	}
	task.TeamworkTask = pending
	return task, nil
}

// Delete removes a task; a remote time entry attached to it is deleted first.
func (s *TaskService) Delete(ctx context.Context, user *model.User, taskID int64) error {
	taskID, err := s.resolveID(ctx, taskID)
	if err != nil {
		return err
	}

	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return err
	}

	if tw := task.TeamworkTask; tw != nil && tw.TeamworkTimeEntryID != nil {
		if err := s.sync.tracker.DeleteTimeEntry(ctx, *tw.TeamworkTimeEntryID); err != nil {
			return fmt.Errorf("delete time entry %d: %w", *tw.TeamworkTimeEntryID, err)
		}
	}

	if err := s.twTasks.DeleteByTaskID(ctx, taskID); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, user.ID, taskID)
}

func (s *TaskService) Get(ctx context.Context, user *model.User, taskID int64) (*model.Task, error) {
	taskID, err := s.resolveID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.tasks.FindByID(ctx, user.ID, taskID)
}

func (s *TaskService) ListInRange(ctx context.Context, user *model.User, from, to time.Time) ([]model.Task, error) {
	return s.tasks.ListInRange(ctx, user.ID, from, to)
}

// StartTimer opens a timer on a task, stopping whichever timer was running
// before. The task's end is cleared while the timer runs.
func (s *TaskService) StartTimer(ctx context.Context, user *model.User, taskID int64) (*model.Task, error) {
	taskID, err := s.resolveID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	if task.ActiveTimerRunning {
		return task, nil
	}

	if err := s.stopRunningTimer(ctx, user); err != nil {
		return nil, err
	}

	task.ActiveTimerRunning = true
	task.EndAt = nil
	task.TeamworkTask = nil
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// StopTimer closes the user's running timer, stamps the end, and reconciles:
// a stopped task may now log its elapsed time.
func (s *TaskService) StopTimer(ctx context.Context, user *model.User) (*model.Task, error) {
	task, err := s.tasks.FindRunning(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoRunningTimer
		}
		return nil, err
	}
	return s.closeTimer(ctx, user, task)
}

func (s *TaskService) stopRunningTimer(ctx context.Context, user *model.User) error {
	task, err := s.tasks.FindRunning(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.closeTimer(ctx, user, task)
	return err
}

func (s *TaskService) closeTimer(ctx context.Context, user *model.User, task *model.Task) (*model.Task, error) {
	now := s.now()
	task.ActiveTimerRunning = false
	task.EndAt = &now

	existing := task.TeamworkTask
	pending := &model.TeamworkTask{TaskID: task.ID}
	if existing != nil {
		*pending = *existing
	}

	if err := s.sync.SyncTimeEntry(ctx, task, existing, pending, user.Email); err != nil {
		return nil, err
	}

	task.TeamworkTask = nil
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	if err := s.twTasks.Upsert(ctx, pending); err != nil {
		return nil, err
	}
	task.TeamworkTask = pending
	return task, nil
}

// resolveID bridges an optimistic negative id to the server-assigned one,
// waiting for the create that issued it to finish.
func (s *TaskService) resolveID(ctx context.Context, taskID int64) (int64, error) {
	if taskID >= 0 {
		return taskID, nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, resolveWait)
	defer cancel()
	realID, err := s.localIDs.WaitForNewID(waitCtx, localIDKey, taskID)
	if err != nil {
		return 0, fmt.Errorf("resolve placeholder id %d: %w", taskID, err)
	}
	return realID, nil
}

// NewLocalID hands the UI a fresh negative placeholder id for an optimistic
// create and registers it.
func (s *TaskService) NewLocalID() (int64, error) {
	id, err := s.localIDs.GenerateUniqueID(localIDKey)
	if err != nil {
		return 0, err
	}
	placeholder := -id
	s.localIDs.Add(localIDKey, placeholder)
	return placeholder, nil
}

func validateInput(input TaskInput) error {
	if input.StartAt.IsZero() {
		return ErrInvalidStart
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			return ErrInvalidTimezone
		}
	}
	return nil
}
