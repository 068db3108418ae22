package telegram

import (
	"fmt"
	"strings"
	"time"

	"step-tracker/internal/services"
	"step-tracker/internal/storage"
	"step-tracker/internal/utils"

	"go.uber.org/zap"
)

const historyLimit = 14

const helpMessage = `🏃 <b>Step Tracker</b>

Available commands:
/today - steps today
/history - daily history
/week - last 7 days
/goal - show or change the daily goal
/goal reset - back to the default goal
/help - this help

Example:
/goal 8000`

func (b *Bot) SendMessageOrLogError(message string) {
	if err := b.SendMessage(message); err != nil {
		b.logError(err)
	}
}

func (b *Bot) logError(err error) {
	b.logger.Warn("telegram send failed", zap.Error(err))
}

func formatToday(today services.TodayStats, now time.Time, loc *time.Location) string {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("📅 <b>Today %s</b>\n\n", today.Date))
	message.WriteString(fmt.Sprintf("👣 <b>%d</b> / %d steps\n", today.Steps, today.Goal))
	message.WriteString(fmt.Sprintf("%s %.0f%%\n", utils.ProgressBar(today.Progress, 10), today.Progress*100))
	message.WriteString(fmt.Sprintf("📏 %.2f km\n", today.DistanceKm))
	if today.GoalMet {
		message.WriteString(fmt.Sprintf("\n<i>\"%s\"</i>\n", services.GoalReachedMessage))
	}
	if today.State == "unavailable" {
		message.WriteString("\n⚠️ Pedometer unavailable, showing the last saved count\n")
	}
	message.WriteString(fmt.Sprintf("\n⏳ %s until midnight\n", utils.UntilMidnight(now, loc)))
	message.WriteString(utils.GetTimezoneInfo(now, loc))
	return message.String()
}

func formatHistory(entries []storage.Entry, goal, limit int) string {
	if len(entries) == 0 {
		return "📭 No history available yet."
	}

	var message strings.Builder
	message.WriteString("📆 <b>Daily step history</b>\n\n")
	for i, e := range entries {
		if i == limit {
			message.WriteString(fmt.Sprintf("… and %d more days\n", len(entries)-limit))
			break
		}
		message.WriteString(fmt.Sprintf("%s %s: %d steps\n", utils.StatusEmoji(e.Steps, goal), e.Date, e.Steps))
	}
	return message.String()
}

func formatWeek(stats *services.WeeklyStats) string {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("📈 <b>Week %s to %s</b>\n\n", stats.StartDate, stats.EndDate))
	for _, d := range stats.Days {
		message.WriteString(fmt.Sprintf("%s %d\n", d.Date, d.Steps))
	}
	message.WriteString(fmt.Sprintf("\n👣 Total: %d (%.2f km)\n", stats.Total, stats.DistanceKm))
	message.WriteString(fmt.Sprintf("📊 Average: %d per day\n", stats.Average))
	message.WriteString(fmt.Sprintf("🏅 Best: %s with %d\n", stats.Best.Date, stats.Best.Steps))
	message.WriteString(fmt.Sprintf("✅ Goal met on %d/7 days, streak %d\n\n", stats.DaysGoalMet, stats.Streak))
	message.WriteString(stats.Insights)
	return message.String()
}

func formatGoalPrompt(goal int) string {
	return fmt.Sprintf("🎯 Daily goal: <b>%d</b> steps\n\nPick a preset or send /goal N", goal)
}

func formatGoalSet(goal int) string {
	return fmt.Sprintf("🎯 Daily goal set to <b>%d</b> steps", goal)
}
