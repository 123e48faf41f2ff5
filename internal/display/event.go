// Package display builds the unified event list the calendar view renders.
package display

import (
	"sort"
	"strings"
	"time"

	"timesheet/internal/model"
)

// EventType tags which source an event came from. Timer supersedes Task for
// the one task whose timer is running.
type EventType string

const (
	TypeSchedule      EventType = "SCHEDULE"
	TypeCalendarEvent EventType = "CALENDAR_EVENT"
	TypeTask          EventType = "TASK"
	TypeTimer         EventType = "TIMER"
)

// Event is a normalized, render-ready calendar entry. It is derived on every
// fetch and never persisted.
type Event struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Title           string    `json:"title"`
	BackgroundColor string    `json:"backgroundColor"`
	TextColor       string    `json:"textColor"`
	Editable        bool      `json:"editable"`
	Type            EventType `json:"type"`
	Payload         any       `json:"payload,omitempty"`
}

// CalendarEvent is an external calendar entry, provider-independent.
type CalendarEvent struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string
}

// ScheduleBlock is one working-hours block from the schedule feed.
type ScheduleBlock struct {
	Title string
	Start time.Time
	End   time.Time
}

// WorkingHours describes the recurring weekly working window by weekday name.
type WorkingHours struct {
	Days      []string
	StartTime string // HH:mm
	EndTime   string // HH:mm
}

// Schedule is the working-hours feed: concrete blocks in the requested range
// plus the weekly pattern they follow.
type Schedule struct {
	Items        []ScheduleBlock
	WorkingHours *WorkingHours
}

// BusinessHours is the derived descriptor the calendar widget consumes, with
// weekdays as 0-6 indices (Sunday = 0).
type BusinessHours struct {
	DaysOfWeek []int  `json:"daysOfWeek"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

const (
	scheduleColor = "#e8f5e9"
	scheduleText  = "#1b5e20"
	calendarColor = "#e3f2fd"
	calendarText  = "#0d47a1"
	taskColor     = "#3788d8"
	taskText      = "#ffffff"
	timerColor    = "#d32f2f"
	timerText     = "#ffffff"
)

var weekdayIndex = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// Compose merges tasks, the working-hours schedule, and external calendar
// events into one list ordered by start time. Any subset of inputs may be nil.
// The sort is stable: events with equal starts keep their encounter order.
// Schedule items are materialized as events only when no external calendar
// feed was supplied, as a fallback view.
func Compose(tasks []model.Task, schedule *Schedule, calendarEvents []CalendarEvent, now time.Time) ([]Event, *BusinessHours) {
	var events []Event
	var hours *BusinessHours

	if schedule != nil {
		if schedule.WorkingHours != nil {
			hours = businessHoursFrom(*schedule.WorkingHours)
		}
		if calendarEvents == nil {
			for _, block := range schedule.Items {
				events = append(events, Event{
					Start:           block.Start,
					End:             block.End,
					Title:           block.Title,
					BackgroundColor: scheduleColor,
					TextColor:       scheduleText,
					Editable:        false,
					Type:            TypeSchedule,
					Payload:         block,
				})
			}
		}
	}

	for _, ce := range calendarEvents {
		events = append(events, Event{
			Start:           ce.Start,
			End:             ce.End,
			Title:           ce.Title,
			BackgroundColor: calendarColor,
			TextColor:       calendarText,
			Editable:        false,
			Type:            TypeCalendarEvent,
			Payload:         ce,
		})
	}

	for _, task := range tasks {
		ev := Event{
			Start:           task.StartAt,
			Title:           task.Title,
			BackgroundColor: taskColor,
			TextColor:       taskText,
			Editable:        true,
			Type:            TypeTask,
			Payload:         task,
		}
		if task.EndAt != nil {
			ev.End = *task.EndAt
		}
		if task.ActiveTimerRunning {
			ev.Type = TypeTimer
			ev.End = now
			ev.BackgroundColor = timerColor
			ev.TextColor = timerText
			ev.Editable = false
		}
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, hours
}

func businessHoursFrom(wh WorkingHours) *BusinessHours {
	bh := &BusinessHours{
		StartTime: wh.StartTime,
		EndTime:   wh.EndTime,
	}
	for _, day := range wh.Days {
		if idx, ok := weekdayIndex[strings.ToLower(day)]; ok {
			bh.DaysOfWeek = append(bh.DaysOfWeek, idx)
		}
	}
	return bh
}

