package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"step-tracker/internal/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// GoalKeeper reads and changes the daily goal.
type GoalKeeper interface {
	Goal() int
	SetGoal(ctx context.Context, goal int) error
	ResetGoal(ctx context.Context) (int, error)
}

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var goalPresets = []int{6000, 8000, 10000, 12000, 15000}

type Bot struct {
	api      botAPI
	chatID   int64
	goals    GoalKeeper
	services *services.ServiceManager
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
	handlers map[string]func(*tgbotapi.Message)
}

func NewBot(token string, chatID int64, goals GoalKeeper, serviceManager *services.ServiceManager, loc *time.Location, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	logger.Info("telegram bot initialized", zap.String("username", botAPI.Self.UserName))
	return newBot(botAPI, chatID, goals, serviceManager, loc, logger), nil
}

func newBot(api botAPI, chatID int64, goals GoalKeeper, serviceManager *services.ServiceManager, loc *time.Location, logger *zap.Logger) *Bot {
	bot := &Bot{
		api:      api,
		chatID:   chatID,
		goals:    goals,
		services: serviceManager,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]func(*tgbotapi.Message)),
	}
	bot.registerHandlers()
	return bot
}

func (b *Bot) registerHandlers() {
	b.handlers["/start"] = b.handleStart
	b.handlers["/today"] = b.handleToday
	b.handlers["/history"] = b.handleHistory
	b.handlers["/week"] = b.handleWeek
	b.handlers["/goal"] = b.handleGoal
	b.handlers["/help"] = b.handleStart
}

func (b *Bot) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

// createGoalKeyboard offers preset goals as inline buttons.
func (b *Bot) createGoalKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, g := range goalPresets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(g/1000)+"k", fmt.Sprintf("goal_%d", g)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	if update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
		var chatID int64
		if update.Message.Chat != nil {
			chatID = update.Message.Chat.ID
		}
		b.logger.Warn("ignoring message from foreign chat", zap.Int64("chat_id", chatID))
		return
	}

	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	command := strings.Fields(text)[0]
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	if args := strings.Fields(text)[1:]; command == "/goal" && len(args) > 0 {
		if args[0] == "reset" {
			b.handleResetGoal(ctx)
		} else {
			b.handleSetGoal(ctx, args[0])
		}
		return
	}

	if handler, exists := b.handlers[command]; exists {
		handler(msg)
	} else {
		b.SendMessageOrLogError("❌ Unknown command. Use /help")
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	defer func(c tgbotapi.Chattable) {
		if _, err := b.api.Request(c); err != nil {
			b.logger.Warn("telegram callback answer failed", zap.Error(err))
		}
	}(tgbotapi.NewCallback(callback.ID, "✅"))

	if callback.Message == nil || callback.Message.Chat == nil || callback.Message.Chat.ID != b.chatID {
		return
	}

	b.logger.Debug("received callback", zap.String("data", callback.Data))
	if strings.HasPrefix(callback.Data, "goal_") {
		b.handleSetGoal(ctx, strings.TrimPrefix(callback.Data, "goal_"))
	}
}
