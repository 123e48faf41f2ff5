// Package bot pushes daily logged-time summaries to Telegram. It is optional:
// users without a chat id are skipped, and the whole notifier is disabled
// when no token is configured.
package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"timesheet/internal/model"
	"timesheet/internal/repository"
)

type Notifier struct {
	api   *tgbotapi.BotAPI
	users *repository.UserRepository
	tasks *repository.TaskRepository
}

func New(token string, users *repository.UserRepository, tasks *repository.TaskRepository) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Notifier{api: api, users: users, tasks: tasks}, nil
}

// SendDailySummaries sends each opted-in user a recap of today's tracked and
// logged time. A failure for one user does not stop the rest.
func (n *Notifier) SendDailySummaries(ctx context.Context) error {
	users, err := n.users.ListAll(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, user := range users {
		if user.TelegramChatID == 0 {
			continue
		}
		text, err := n.dailySummary(ctx, user, now)
		if err != nil {
			log.Printf("summary for %s: %v", user.Email, err)
			continue
		}
		msg := tgbotapi.NewMessage(user.TelegramChatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := n.api.Send(msg); err != nil {
			log.Printf("send summary to %s: %v", user.Email, err)
		}
	}
	return nil
}

func (n *Notifier) dailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tasks, err := n.tasks.ListInRange(ctx, user.ID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return "", err
	}

	var tracked, logged time.Duration
	var running *model.Task
	for i := range tasks {
		d := tasks[i].Duration(now)
		tracked += d
		if tasks[i].LogTime {
			logged += d
		}
		if tasks[i].ActiveTimerRunning {
			running = &tasks[i]
		}
	}

	var b strings.Builder
	b.WriteString("<b>Timesheet daily recap</b>\n")
	b.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("⏱ Tracked: %s over %d task(s)\n", formatDuration(tracked), len(tasks)))
	b.WriteString(fmt.Sprintf("🧾 Logged to tracker: %s\n", formatDuration(logged)))
	if running != nil {
		title := strings.TrimSpace(running.Title)
		if title == "" {
			title = "untitled task"
		}
		b.WriteString(fmt.Sprintf("▶️ Timer still running: %s\n", html.EscapeString(title)))
	}
	return strings.TrimSpace(b.String()), nil
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}
