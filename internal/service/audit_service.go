package service

import (
	"context"
	"errors"
	"log"
	"net/http"

	"timesheet/internal/repository"
	"timesheet/internal/teamwork"
)

// AuditService periodically verifies that every stored time-entry id still
// exists on the tracker and clears the ones deleted out-of-band, keeping the
// TeamworkTimeEntryID invariant honest.
type AuditService struct {
	twTasks *repository.TeamworkTaskRepository
	tracker TrackerClient
}

func NewAuditService(twTasks *repository.TeamworkTaskRepository, tracker TrackerClient) *AuditService {
	return &AuditService{twTasks: twTasks, tracker: tracker}
}

// AuditTimeEntries scans all associations claiming a remote entry. A 404 from
// the tracker clears the stored id; other tracker failures only log, so one
// flaky call does not abort the sweep.
func (s *AuditService) AuditTimeEntries(ctx context.Context) error {
	rows, err := s.twTasks.ListWithEntries(ctx)
	if err != nil {
		return err
	}

	for i := range rows {
		row := rows[i]
		_, err := s.tracker.GetTimeEntry(ctx, *row.TeamworkTimeEntryID)
		if err == nil {
			continue
		}
		var apiErr *teamwork.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			row.TeamworkTimeEntryID = nil
			if err := s.twTasks.Upsert(ctx, &row); err != nil {
				return err
			}
			continue
		}
		log.Printf("audit: time entry check for task %d: %v", row.TaskID, err)
	}
	return nil
}
