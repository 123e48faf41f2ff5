package service

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"timesheet/internal/model"
	"timesheet/internal/teamwork"
)

// TrackerClient is the slice of the tracker API the reconciliation engine
// needs.
type TrackerClient interface {
	CreateTimeEntryForTask(ctx context.Context, remoteTaskID int64, entry teamwork.TimeEntry) (int64, error)
	UpdateTimeEntry(ctx context.Context, entryID int64, entry teamwork.TimeEntry) error
	DeleteTimeEntry(ctx context.Context, entryID int64) error
	GetTimeEntry(ctx context.Context, entryID int64) (teamwork.TimeEntry, error)
	FindPersonByEmail(ctx context.Context, email string) (*teamwork.Person, error)
}

// ticketPattern matches an 8-digit ticket reference embedded in a task title.
var ticketPattern = regexp.MustCompile(`\b\d{8}\b`)

// SyncService keeps the tracker's time-entry ledger consistent with a task's
// logging intent. Methods mutate the passed task/association in place; the
// caller persists them only after the external calls settle.
type SyncService struct {
	tracker TrackerClient
	now     func() time.Time

	mu        sync.Mutex
	personIDs map[string]int64
}

func NewSyncService(tracker TrackerClient) *SyncService {
	return &SyncService{
		tracker:   tracker,
		now:       time.Now,
		personIDs: make(map[string]int64),
	}
}

// SyncTimeEntry reconciles the remote time entry for a task mutation.
//
// task carries the pending field values, existing the previously stored
// association (nil on create), and pending the association being written; its
// TeamworkTimeEntryID is set or cleared to reflect what now exists remotely.
// A task whose timer is still running never logs time.
//
// Any tracker failure aborts the remaining steps and is returned as-is; the
// whole procedure is idempotent with respect to already-deleted or created
// entries, so the caller may simply re-invoke the mutation.
func (s *SyncService) SyncTimeEntry(ctx context.Context, task *model.Task, existing, pending *model.TeamworkTask, email string) error {
	if task.ActiveTimerRunning {
		return nil
	}

	var entryID *int64
	if existing != nil {
		entryID = existing.TeamworkTimeEntryID
	}

	// Logging switched off: the remote entry must go.
	if !task.LogTime {
		if entryID != nil {
			if err := s.tracker.DeleteTimeEntry(ctx, *entryID); err != nil {
				return fmt.Errorf("delete time entry %d: %w", *entryID, err)
			}
		}
		if pending != nil {
			pending.TeamworkTimeEntryID = nil
		}
		return nil
	}

	// A changed project/task association invalidates the old entry; remove it
	// before anything else so no orphan remains under the old task.
	if entryID != nil && existing != nil && pending != nil && !existing.SameAssociation(*pending) {
		if err := s.tracker.DeleteTimeEntry(ctx, *entryID); err != nil {
			return fmt.Errorf("delete stale time entry %d: %w", *entryID, err)
		}
		entryID = nil
	}

	if entryID != nil {
		entry, err := s.buildEntry(ctx, task, email)
		if err != nil {
			return err
		}
		if err := s.tracker.UpdateTimeEntry(ctx, *entryID, entry); err != nil {
			return fmt.Errorf("update time entry %d: %w", *entryID, err)
		}
		if pending != nil {
			pending.TeamworkTimeEntryID = entryID
		}
		return nil
	}

	if pending != nil && pending.TeamworkTaskID != nil {
		entry, err := s.buildEntry(ctx, task, email)
		if err != nil {
			return err
		}
		newID, err := s.tracker.CreateTimeEntryForTask(ctx, *pending.TeamworkTaskID, entry)
		if err != nil {
			return fmt.Errorf("create time entry: %w", err)
		}
		pending.TeamworkTimeEntryID = &newID
		return nil
	}

	// Logging is requested but there is nothing to log against. Downgrade
	// instead of leaving a dangling intent.
	task.LogTime = false
	task.Billable = false
	if pending != nil {
		pending.TeamworkTimeEntryID = nil
	}
	return nil
}

// buildEntry derives the wire entry from the task's current values. Date and
// time-of-day are rendered in the task's captured timezone so the entry lands
// on the right day regardless of where the server or viewer sits.
func (s *SyncService) buildEntry(ctx context.Context, task *model.Task, email string) (teamwork.TimeEntry, error) {
	personID, err := s.resolvePersonID(ctx, email)
	if err != nil {
		return teamwork.TimeEntry{}, err
	}

	loc := task.Location()
	start := task.StartAt.In(loc)

	minutes := int(task.Duration(s.now()).Minutes())
	entry := teamwork.TimeEntry{
		Date:        start.Format("20060102"),
		Time:        start.Format("15:04"),
		PersonID:    personID,
		Hours:       minutes / 60,
		Minutes:     minutes % 60,
		Billable:    task.Billable,
		Description: task.Description,
	}
	if ticket := ticketPattern.FindString(task.Title); ticket != "" {
		entry.TicketID = ticket
	}
	return entry, nil
}

// resolvePersonID looks up the tracker person for an email, cached per email
// for the life of the process.
func (s *SyncService) resolvePersonID(ctx context.Context, email string) (int64, error) {
	s.mu.Lock()
	if id, ok := s.personIDs[email]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	person, err := s.tracker.FindPersonByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("resolve person for %s: %w", email, err)
	}

	s.mu.Lock()
	s.personIDs[email] = person.ID
	s.mu.Unlock()
	return person.ID, nil
}
