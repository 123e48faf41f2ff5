// Package gcal reads the user's meetings and working-hours blocks from Google
// Calendar.
package gcal

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"timesheet/internal/display"
)

// Client reads events from two calendars: the main one (meetings) and a
// dedicated working-hours calendar whose blocks form the schedule.
type Client struct {
	srv        *calendar.Service
	calendarID string
	scheduleID string
}

// NewClient authenticates and resolves both calendars by display name.
// "primary" is accepted as-is for the main calendar.
func NewClient(ctx context.Context, credentialsFile, tokenFile, calendarName, scheduleName string) (*Client, error) {
	httpc, err := newHTTPClient(ctx, credentialsFile, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(httpc))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	c := &Client{srv: srv}
	if calendarName == "primary" {
		c.calendarID = "primary"
	}

	list, err := srv.CalendarList.List().Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == calendarName {
			c.calendarID = item.Id
		}
		if item.Summary == scheduleName {
			c.scheduleID = item.Id
		}
	}

	if c.calendarID == "" {
		return nil, fmt.Errorf("calendar %q not found", calendarName)
	}
	// A missing schedule calendar is tolerated: the compositor works without
	// business hours.
	return c, nil
}

// ListEvents fetches the main calendar's events within [from, to).
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]display.CalendarEvent, error) {
	items, err := c.rangeEvents(ctx, c.calendarID, from, to)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	events := make([]display.CalendarEvent, 0, len(items))
	for _, it := range items {
		ev, ok := toCalendarEvent(it)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// FetchSchedule reads the working-hours calendar in [from, to) and derives the
// weekly working-hours pattern from its blocks. Returns nil when no schedule
// calendar is configured.
func (c *Client) FetchSchedule(ctx context.Context, from, to time.Time) (*display.Schedule, error) {
	if c.scheduleID == "" {
		return nil, nil
	}
	items, err := c.rangeEvents(ctx, c.scheduleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve schedule: %w", err)
	}

	sched := &display.Schedule{}
	seenDays := map[string]bool{}
	var dayOrder []string
	var earliest, latest string

	for _, it := range items {
		ev, ok := toCalendarEvent(it)
		if !ok {
			continue
		}
		sched.Items = append(sched.Items, display.ScheduleBlock{
			Title: ev.Title,
			Start: ev.Start,
			End:   ev.End,
		})

		day := ev.Start.Weekday().String()
		if !seenDays[day] {
			seenDays[day] = true
			dayOrder = append(dayOrder, day)
		}
		startHM := ev.Start.Format("15:04")
		endHM := ev.End.Format("15:04")
		if earliest == "" || startHM < earliest {
			earliest = startHM
		}
		if latest == "" || endHM > latest {
			latest = endHM
		}
	}

	if len(dayOrder) > 0 {
		sched.WorkingHours = &display.WorkingHours{
			Days:      dayOrder,
			StartTime: earliest,
			EndTime:   latest,
		}
	}
	return sched, nil
}

func (c *Client) rangeEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*calendar.Event, error) {
	call := c.srv.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	events, err := call.Do()
	if err != nil {
		return nil, err
	}
	return events.Items, nil
}

// toCalendarEvent normalizes a Google event; all-day events carry a date
// instead of a datetime and are skipped.
func toCalendarEvent(it *calendar.Event) (display.CalendarEvent, bool) {
	if it.Start == nil || it.End == nil || it.Start.DateTime == "" || it.End.DateTime == "" {
		return display.CalendarEvent{}, false
	}
	start, err := time.Parse(time.RFC3339, it.Start.DateTime)
	if err != nil {
		return display.CalendarEvent{}, false
	}
	end, err := time.Parse(time.RFC3339, it.End.DateTime)
	if err != nil {
		return display.CalendarEvent{}, false
	}
	return display.CalendarEvent{
		ID:          it.Id,
		Title:       it.Summary,
		Description: it.Description,
		Start:       start,
		End:         end,
		Location:    it.Location,
	}, true
}
