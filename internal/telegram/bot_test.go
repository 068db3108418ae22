package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"step-tracker/internal/daykey"
	"step-tracker/internal/services"
	"step-tracker/internal/storage"
	"step-tracker/internal/tracker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const chatID = 42

type fakeAPI struct {
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeGoals struct {
	goal int
	err  error
}

func (g *fakeGoals) Goal() int { return g.goal }

func (g *fakeGoals) SetGoal(_ context.Context, goal int) error {
	if goal <= 0 {
		return storage.ErrInvalidGoal
	}
	g.goal = goal
	return g.err
}

func (g *fakeGoals) ResetGoal(context.Context) (int, error) {
	g.goal = 10000
	return g.goal, g.err
}

type fakeSource struct {
	current tracker.Update
	history []storage.Entry
}

func (f *fakeSource) Current() tracker.Update   { return f.current }
func (f *fakeSource) History() []storage.Entry { return f.history }

func newTestBot(src *fakeSource, goals *fakeGoals) (*Bot, *fakeAPI) {
	api := &fakeAPI{}
	sm := services.NewServiceManager(src, daykey.New(time.UTC), 0.7, zap.NewNop())
	b := newBot(api, chatID, goals, sm, time.UTC, zap.NewNop())
	b.now = func() time.Time { return time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC) }
	return b, api
}

func command(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}}
}

func TestTodayCommand(t *testing.T) {
	src := &fakeSource{current: tracker.Update{Day: "2024-01-02", Steps: 4200, Goal: 10000, State: tracker.Tracking}}
	b, api := newTestBot(src, &fakeGoals{goal: 10000})

	b.handleUpdate(context.Background(), command("/today"))

	msg := api.last(t)
	assert.Equal(t, int64(chatID), msg.ChatID)
	assert.Equal(t, "HTML", msg.ParseMode)
	assert.Contains(t, msg.Text, "<b>4200</b> / 10000 steps")
	assert.Contains(t, msg.Text, "2.94 km")
	assert.Contains(t, msg.Text, "2h 00m until midnight")
	assert.NotContains(t, msg.Text, services.GoalReachedMessage)
}

func TestTodayCommandUnavailable(t *testing.T) {
	src := &fakeSource{current: tracker.Update{Day: "2024-01-02", Steps: 12000, Goal: 10000, State: tracker.Unavailable}}
	b, api := newTestBot(src, &fakeGoals{goal: 10000})

	b.handleUpdate(context.Background(), command("/today@steps_bot"))

	assert.Contains(t, api.last(t).Text, "Pedometer unavailable")
	assert.Contains(t, api.last(t).Text, services.GoalReachedMessage)
}

func TestHistoryCommand(t *testing.T) {
	src := &fakeSource{history: []storage.Entry{
		{Date: "2024-01-02", Steps: 12000},
		{Date: "2024-01-01", Steps: 300},
	}}
	b, api := newTestBot(src, &fakeGoals{goal: 10000})

	b.handleUpdate(context.Background(), command("/history"))

	text := api.last(t).Text
	assert.Contains(t, text, "✅ 2024-01-02: 12000 steps")
	assert.Contains(t, text, "🚶 2024-01-01: 300 steps")
	assert.Less(t, strings.Index(text, "2024-01-02"), strings.Index(text, "2024-01-01"))
}

func TestHistoryCommandEmpty(t *testing.T) {
	b, api := newTestBot(&fakeSource{}, &fakeGoals{goal: 10000})
	b.handleUpdate(context.Background(), command("/history"))
	assert.Equal(t, "📭 No history available yet.", api.last(t).Text)
}

func TestFormatHistoryLimit(t *testing.T) {
	entries := []storage.Entry{{Date: "2024-01-03", Steps: 1}, {Date: "2024-01-02", Steps: 2}, {Date: "2024-01-01", Steps: 3}}
	text := formatHistory(entries, 10, 2)
	assert.NotContains(t, text, "2024-01-01")
	assert.Contains(t, text, "and 1 more days")
}

func TestWeekCommand(t *testing.T) {
	src := &fakeSource{current: tracker.Update{Day: "2024-01-07", Steps: 10000, Goal: 10000}}
	b, api := newTestBot(src, &fakeGoals{goal: 10000})

	b.handleUpdate(context.Background(), command("/week"))

	text := api.last(t).Text
	assert.Contains(t, text, "Week 2024-01-01 to 2024-01-07")
	assert.Contains(t, text, "Goal met on 1/7 days, streak 1")
}

func TestGoalCommands(t *testing.T) {
	goals := &fakeGoals{goal: 10000}
	b, api := newTestBot(&fakeSource{}, goals)
	ctx := context.Background()

	b.handleUpdate(ctx, command("/goal"))
	prompt := api.last(t)
	assert.Contains(t, prompt.Text, "<b>10000</b>")
	keyboard, ok := prompt.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 1)
	assert.Len(t, keyboard.InlineKeyboard[0], len(goalPresets))

	b.handleUpdate(ctx, command("/goal 8000"))
	assert.Equal(t, 8000, goals.goal)
	assert.Contains(t, api.last(t).Text, "set to <b>8000</b>")

	b.handleUpdate(ctx, command("/goal -5"))
	assert.Equal(t, 8000, goals.goal)
	assert.Contains(t, api.last(t).Text, "Please enter a positive number")

	b.handleUpdate(ctx, command("/goal lots"))
	assert.Equal(t, 8000, goals.goal)

	b.handleUpdate(ctx, command("/goal reset"))
	assert.Equal(t, 10000, goals.goal)
	assert.Contains(t, api.last(t).Text, "set to <b>10000</b>")
}

func TestGoalPersistWarning(t *testing.T) {
	goals := &fakeGoals{goal: 10000, err: storage.ErrPersist}
	b, api := newTestBot(&fakeSource{}, goals)

	b.handleSetGoal(context.Background(), "9000")
	assert.Equal(t, 9000, goals.goal)
	assert.Contains(t, api.last(t).Text, "Could not save it")

	goals.err = errors.New("boom")
	b.handleSetGoal(context.Background(), "9500")
	assert.Equal(t, "❌ Could not update the goal", api.last(t).Text)
}

func TestGoalCallback(t *testing.T) {
	goals := &fakeGoals{goal: 10000}
	b, api := newTestBot(&fakeSource{}, goals)

	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "goal_12000",
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}})

	assert.Equal(t, 12000, goals.goal)
	assert.Len(t, api.requests, 1)
}

func TestForeignChatIgnored(t *testing.T) {
	goals := &fakeGoals{goal: 10000}
	b, api := newTestBot(&fakeSource{}, goals)

	b.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "/goal 1", Chat: &tgbotapi.Chat{ID: 7},
	}})
	b.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "/today"}})

	assert.Equal(t, 10000, goals.goal)
	assert.Empty(t, api.sent)
}

func TestUnknownCommand(t *testing.T) {
	b, api := newTestBot(&fakeSource{}, &fakeGoals{goal: 1})
	b.handleUpdate(context.Background(), command("/dance"))
	assert.Equal(t, "❌ Unknown command. Use /help", api.last(t).Text)

	before := len(api.sent)
	b.handleUpdate(context.Background(), command("just chatting"))
	assert.Len(t, api.sent, before)
}

func TestStartStopsOnCancel(t *testing.T) {
	b, _ := newTestBot(&fakeSource{}, &fakeGoals{goal: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
}
