package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"timesheet/internal/localid"
	"timesheet/internal/model"
	"timesheet/internal/repository"
)

func newTestStack(t *testing.T) (*TaskService, *fakeTracker, *model.User) {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	users := repository.NewUserRepository(db)
	user, err := users.UpsertByEmail(context.Background(), "dev@example.com", "Dev")
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	tracker := newFakeTracker()
	svc := NewTaskService(
		repository.NewTaskRepository(db),
		repository.NewTeamworkTaskRepository(db),
		NewSyncService(tracker),
		localid.NewRegistry(),
	)
	return svc, tracker, user
}

func baseInput() TaskInput {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	return TaskInput{
		StartAt:  start,
		EndAt:    &end,
		Title:    "work",
		Timezone: "UTC",
	}
}

func TestTaskServiceCreate_LogsTimeAndPersistsEntryID(t *testing.T) {
	svc, tracker, user := newTestStack(t)
	ctx := context.Background()

	input := baseInput()
	input.LogTime = true
	input.Billable = true
	input.TeamworkProjectID = ptr(7)
	input.TeamworkTaskID = ptr(70)

	task, err := svc.Create(ctx, user, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(tracker.created) != 1 || tracker.created[0] != 70 {
		t.Fatalf("expected one entry under remote task 70, got %v", tracker.created)
	}
	if task.TeamworkTask == nil || task.TeamworkTask.TeamworkTimeEntryID == nil {
		t.Fatalf("entry id not stored")
	}

	got, err := svc.Get(ctx, user, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TeamworkTask.TeamworkTimeEntryID == nil ||
		*got.TeamworkTask.TeamworkTimeEntryID != *task.TeamworkTask.TeamworkTimeEntryID {
		t.Fatalf("persisted entry id differs")
	}
}

func TestTaskServiceCreate_NoAssociationDowngradesPersisted(t *testing.T) {
	svc, tracker, user := newTestStack(t)
	ctx := context.Background()

	input := baseInput()
	input.LogTime = true
	input.Billable = true

	task, err := svc.Create(ctx, user, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.LogTime || task.Billable {
		t.Fatalf("expected persisted downgrade, got logTime=%v billable=%v", task.LogTime, task.Billable)
	}
	if len(tracker.created) != 0 {
		t.Fatalf("no entry should be created without an association")
	}
}

func TestTaskServiceCreate_Validation(t *testing.T) {
	svc, _, user := newTestStack(t)
	ctx := context.Background()

	input := baseInput()
	input.StartAt = time.Time{}
	if _, err := svc.Create(ctx, user, input); !errors.Is(err, ErrInvalidStart) {
		t.Fatalf("expected ErrInvalidStart, got %v", err)
	}

	input = baseInput()
	input.Timezone = "Mars/Olympus"
	if _, err := svc.Create(ctx, user, input); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
}

func TestTaskService_StartTimerStopsPrevious(t *testing.T) {
	svc, tracker, user := newTestStack(t)
	ctx := context.Background()

	first := baseInput()
	first.ActiveTimerRunning = true
	first.EndAt = nil
	first.LogTime = true
	first.TeamworkProjectID = ptr(7)
	first.TeamworkTaskID = ptr(70)
	running, err := svc.Create(ctx, user, first)
	if err != nil {
		t.Fatalf("create running: %v", err)
	}
	if len(tracker.created) != 0 {
		t.Fatalf("a running timer must not log yet")
	}

	second, err := svc.Create(ctx, user, baseInput())
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	started, err := svc.StartTimer(ctx, user, second.ID)
	if err != nil {
		t.Fatalf("start timer: %v", err)
	}
	if !started.ActiveTimerRunning || started.EndAt != nil {
		t.Fatalf("second task should be running with open end")
	}

	prev, err := svc.Get(ctx, user, running.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if prev.ActiveTimerRunning {
		t.Fatalf("first timer should have been stopped")
	}
	if prev.EndAt == nil {
		t.Fatalf("stopped timer should have an end")
	}
	// Stopping the first timer let its logging intent fire.
	if len(tracker.created) != 1 {
		t.Fatalf("expected the stopped task to log its entry, got %v", tracker.created)
	}
}

func TestTaskService_StopTimerWithoutRunning(t *testing.T) {
	svc, _, user := newTestStack(t)
	if _, err := svc.StopTimer(context.Background(), user); !errors.Is(err, ErrNoRunningTimer) {
		t.Fatalf("expected ErrNoRunningTimer, got %v", err)
	}
}

func TestTaskService_UpdateTurnsLoggingOff(t *testing.T) {
	svc, tracker, user := newTestStack(t)
	ctx := context.Background()

	input := baseInput()
	input.LogTime = true
	input.TeamworkProjectID = ptr(7)
	input.TeamworkTaskID = ptr(70)
	task, err := svc.Create(ctx, user, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	entryID := *task.TeamworkTask.TeamworkTimeEntryID

	off := input
	off.LogTime = false
	updated, err := svc.Update(ctx, user, task.ID, off)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(tracker.deleted) != 1 || tracker.deleted[0] != entryID {
		t.Fatalf("expected entry %d deleted, got %v", entryID, tracker.deleted)
	}
	if updated.TeamworkTask.TeamworkTimeEntryID != nil {
		t.Fatalf("entry id should be cleared")
	}
}

func TestTaskService_DeleteRemovesRemoteEntry(t *testing.T) {
	svc, tracker, user := newTestStack(t)
	ctx := context.Background()

	input := baseInput()
	input.LogTime = true
	input.TeamworkProjectID = ptr(7)
	input.TeamworkTaskID = ptr(70)
	task, err := svc.Create(ctx, user, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	entryID := *task.TeamworkTask.TeamworkTimeEntryID

	if err := svc.Delete(ctx, user, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(tracker.deleted) != 1 || tracker.deleted[0] != entryID {
		t.Fatalf("expected remote entry deleted, got %v", tracker.deleted)
	}
	if _, err := svc.Get(ctx, user, task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected task gone, got %v", err)
	}
}

func TestTaskService_OptimisticIDBridging(t *testing.T) {
	svc, _, user := newTestStack(t)
	ctx := context.Background()

	placeholder, err := svc.NewLocalID()
	if err != nil {
		t.Fatalf("new local id: %v", err)
	}
	if placeholder >= 0 {
		t.Fatalf("expected a negative placeholder, got %d", placeholder)
	}

	// An update issued against the placeholder must block until the create
	// publishes the real id, then apply against it.
	type result struct {
		task *model.Task
		err  error
	}
	done := make(chan result, 1)
	go func() {
		upd := baseInput()
		upd.Title = "renamed"
		task, err := svc.Update(ctx, user, placeholder, upd)
		done <- result{task, err}
	}()

	time.Sleep(20 * time.Millisecond)
	input := baseInput()
	input.LocalID = placeholder
	created, err := svc.Create(ctx, user, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("deferred update: %v", res.err)
		}
		if res.task.ID != created.ID {
			t.Fatalf("update hit %d, want the real id %d", res.task.ID, created.ID)
		}
		if res.task.Title != "renamed" {
			t.Fatalf("update not applied: %q", res.task.Title)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("update never resolved against the placeholder")
	}
}
