package services

import (
	"fmt"
	"strings"

	"step-tracker/internal/tracker"
	"step-tracker/internal/utils"

	"go.uber.org/zap"
)

const GoalReachedMessage = "Great job! Keep pushing your limits!"

// NotificationSender delivers text to the user.
type NotificationSender interface {
	SendMessage(text string) error
}

type NotificationService struct {
	sender    NotificationSender
	analytics *AnalyticsService
	logger    *zap.Logger
}

func NewNotificationService(sender NotificationSender, analytics *AnalyticsService, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		sender:    sender,
		analytics: analytics,
		logger:    logger,
	}
}

// HandleUpdate is registered as an aggregator listener and congratulates
// the user on the commit that reaches the goal.
func (ns *NotificationService) HandleUpdate(u tracker.Update) {
	if !u.GoalReached {
		return
	}
	message := fmt.Sprintf("🏆 <b>%d / %d steps</b>\n\n<i>\"%s\"</i>", u.Steps, u.Goal, GoalReachedMessage)
	if err := ns.sender.SendMessage(message); err != nil {
		ns.logger.Warn("failed to send goal notification", zap.Error(err))
	}
}

// SendDailySummary sends today's total, progress and distance.
func (ns *NotificationService) SendDailySummary() {
	today := ns.analytics.Today()

	var message strings.Builder
	message.WriteString(fmt.Sprintf("📊 <b>Day summary %s</b>\n\n", today.Date))
	message.WriteString(fmt.Sprintf("👣 %d / %d steps (%.0f%%)\n", today.Steps, today.Goal, today.Progress*100))
	message.WriteString(utils.ProgressBar(today.Progress, 10) + "\n")
	message.WriteString(fmt.Sprintf("📏 %.2f km\n\n", today.DistanceKm))
	if today.GoalMet {
		message.WriteString("✅ Goal reached. " + GoalReachedMessage)
	} else {
		message.WriteString(fmt.Sprintf("🚶 %d steps to go. Tomorrow is a new day! 🌅", today.Goal-today.Steps))
	}

	if err := ns.sender.SendMessage(message.String()); err != nil {
		ns.logger.Warn("failed to send daily summary", zap.Error(err))
	}
}

// LogSender writes notifications to the log when no chat is configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) SendMessage(text string) error {
	s.Logger.Info("notification", zap.String("text", text))
	return nil
}
