package service

import (
	"testing"
	"time"
)

func TestScheduleDaily_ValidatesTime(t *testing.T) {
	s := NewSchedulerService(time.UTC)

	if _, err := s.ScheduleDaily("18:00", func() {}); err != nil {
		t.Fatalf("valid time rejected: %v", err)
	}
	for _, bad := range []string{"", "24:00", "18", "18:60", "six pm"} {
		if _, err := s.ScheduleDaily(bad, func() {}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestScheduleInterval_RejectsSubSecond(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := s.ScheduleInterval(time.Hour, func() {}); err != nil {
		t.Fatalf("hourly interval rejected: %v", err)
	}
}
