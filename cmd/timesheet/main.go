package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timesheet/internal/bot"
	"timesheet/internal/config"
	"timesheet/internal/gcal"
	httpx "timesheet/internal/handler/http"
	"timesheet/internal/localid"
	"timesheet/internal/repository"
	"timesheet/internal/server"
	"timesheet/internal/service"
	"timesheet/internal/teamwork"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	twTaskRepo := repository.NewTeamworkTaskRepository(db)

	tracker := teamwork.NewClient(cfg.TeamworkSite, cfg.TeamworkAPIKey)

	var calClient service.CalendarClient
	if cfg.CredentialsFile != "" {
		gc, err := gcal.NewClient(ctx, cfg.CredentialsFile, cfg.TokenFile, cfg.CalendarName, cfg.ScheduleName)
		if err != nil {
			log.Fatalf("calendar: %v", err)
		}
		calClient = gc
	} else {
		log.Println("No GOOGLE_CREDENTIALS_FILE set; calendar feed disabled.")
	}

	syncSvc := service.NewSyncService(tracker)
	taskSvc := service.NewTaskService(taskRepo, twTaskRepo, syncSvc, localid.NewRegistry())
	calSvc := service.NewCalendarService(taskRepo, calClient)
	auditSvc := service.NewAuditService(twTaskRepo, tracker)

	scheduler := service.NewSchedulerService(time.Local)
	if _, err := scheduler.ScheduleInterval(cfg.AuditInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := auditSvc.AuditTimeEntries(jobCtx); err != nil {
			log.Printf("audit: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule audit: %v", err)
	}

	if cfg.TelegramToken != "" {
		notifier, err := bot.New(cfg.TelegramToken, userRepo, taskRepo)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		if _, err := scheduler.ScheduleDaily(cfg.SummaryTime, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := notifier.SendDailySummaries(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("summary: %v", err)
			}
		}); err != nil {
			log.Fatalf("schedule summary: %v", err)
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	handler := httpx.New(userRepo, taskSvc, calSvc, tracker)
	srv := server.New(cfg.HTTPAddr, handler)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Timesheet server listening on %s.", cfg.HTTPAddr)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
