package service

import (
	"context"
	"time"

	"timesheet/internal/display"
	"timesheet/internal/model"
	"timesheet/internal/repository"
)

// CalendarClient is the external calendar collaborator: meeting events and
// the working-hours schedule for a date range.
type CalendarClient interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]display.CalendarEvent, error)
	FetchSchedule(ctx context.Context, from, to time.Time) (*display.Schedule, error)
}

// CalendarService assembles the three event sources for a range and hands
// them to the compositor.
type CalendarService struct {
	tasks *repository.TaskRepository
	cal   CalendarClient
	now   func() time.Time
}

// NewCalendarService builds the service; cal may be nil when no external
// calendar is configured, in which case only tasks are composed.
func NewCalendarService(tasks *repository.TaskRepository, cal CalendarClient) *CalendarService {
	return &CalendarService{tasks: tasks, cal: cal, now: time.Now}
}

// ComposeRange fetches tasks, the schedule, and calendar events for [from, to)
// and merges them into the ordered display list plus business hours.
func (s *CalendarService) ComposeRange(ctx context.Context, user *model.User, from, to time.Time) ([]display.Event, *display.BusinessHours, error) {
	tasks, err := s.tasks.ListInRange(ctx, user.ID, from, to)
	if err != nil {
		return nil, nil, err
	}

	var schedule *display.Schedule
	var calendarEvents []display.CalendarEvent
	if s.cal != nil {
		schedule, err = s.cal.FetchSchedule(ctx, from, to)
		if err != nil {
			return nil, nil, err
		}
		calendarEvents, err = s.cal.ListEvents(ctx, from, to)
		if err != nil {
			return nil, nil, err
		}
	}

	events, hours := display.Compose(tasks, schedule, calendarEvents, s.now())
	return events, hours, nil
}
