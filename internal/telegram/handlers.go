package telegram

import (
	"context"
	"errors"

	"step-tracker/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	b.SendMessageOrLogError(helpMessage)
}

func (b *Bot) handleToday(msg *tgbotapi.Message) {
	b.SendMessageOrLogError(formatToday(b.services.Analytics.Today(), b.now(), b.loc))
}

func (b *Bot) handleHistory(msg *tgbotapi.Message) {
	b.SendMessageOrLogError(formatHistory(b.services.Analytics.History(), b.goals.Goal(), historyLimit))
}

func (b *Bot) handleWeek(msg *tgbotapi.Message) {
	stats, err := b.services.Analytics.Weekly()
	if err != nil {
		b.SendMessageOrLogError("❌ Weekly summary is not available yet")
		return
	}
	b.SendMessageOrLogError(formatWeek(stats))
}

// handleGoal shows the current goal with preset buttons.
func (b *Bot) handleGoal(msg *tgbotapi.Message) {
	reply := tgbotapi.NewMessage(b.chatID, formatGoalPrompt(b.goals.Goal()))
	reply.ParseMode = "HTML"
	reply.ReplyMarkup = b.createGoalKeyboard()
	if _, err := b.api.Send(reply); err != nil {
		b.logError(err)
	}
}

func (b *Bot) handleSetGoal(ctx context.Context, input string) {
	goal, err := storage.ParseGoal(input)
	if err != nil {
		b.SendMessageOrLogError("❌ Invalid input. Please enter a positive number.")
		return
	}

	err = b.goals.SetGoal(ctx, goal)
	switch {
	case errors.Is(err, storage.ErrInvalidGoal):
		b.SendMessageOrLogError("❌ Invalid input. Please enter a positive number.")
	case errors.Is(err, storage.ErrPersist):
		b.SendMessageOrLogError(formatGoalSet(goal) + "\n⚠️ Could not save it, it applies until restart.")
	case err != nil:
		b.SendMessageOrLogError("❌ Could not update the goal")
	default:
		b.SendMessageOrLogError(formatGoalSet(goal))
	}
}

func (b *Bot) handleResetGoal(ctx context.Context) {
	goal, err := b.goals.ResetGoal(ctx)
	switch {
	case errors.Is(err, storage.ErrPersist):
		b.SendMessageOrLogError(formatGoalSet(goal) + "\n⚠️ Could not save it, it applies until restart.")
	case err != nil:
		b.SendMessageOrLogError("❌ Could not update the goal")
	default:
		b.SendMessageOrLogError(formatGoalSet(goal))
	}
}
