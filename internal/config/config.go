package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config keeps runtime settings for the server.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	TeamworkSite    string
	TeamworkAPIKey  string
	CredentialsFile string
	TokenFile       string
	CalendarName    string
	ScheduleName    string
	TelegramToken   string
	SummaryTime     string // HH:MM, daily Telegram summary
	AuditInterval   time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPAddr:        strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		TeamworkSite:    strings.TrimSpace(os.Getenv("TEAMWORK_SITE")),
		TeamworkAPIKey:  strings.TrimSpace(os.Getenv("TEAMWORK_API_KEY")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_FILE")),
		TokenFile:       strings.TrimSpace(os.Getenv("GOOGLE_TOKEN_FILE")),
		CalendarName:    strings.TrimSpace(os.Getenv("CALENDAR_NAME")),
		ScheduleName:    strings.TrimSpace(os.Getenv("SCHEDULE_CALENDAR_NAME")),
		TelegramToken:   strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		SummaryTime:     strings.TrimSpace(os.Getenv("SUMMARY_TIME")),
		AuditInterval:   parseInterval(strings.TrimSpace(os.Getenv("AUDIT_INTERVAL_HOURS"))),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "timesheet.db"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = "primary"
	}
	if cfg.ScheduleName == "" {
		cfg.ScheduleName = "Working Hours"
	}
	if cfg.SummaryTime == "" {
		cfg.SummaryTime = "18:00"
	}
	if cfg.AuditInterval == 0 {
		cfg.AuditInterval = 6 * time.Hour
	}

	if cfg.TeamworkSite == "" {
		return cfg, fmt.Errorf("TEAMWORK_SITE is required")
	}
	if cfg.TeamworkAPIKey == "" {
		return cfg, fmt.Errorf("TEAMWORK_API_KEY is required")
	}

	return cfg, nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
