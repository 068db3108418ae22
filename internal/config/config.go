package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Telegram struct {
		Token  string `env:"TG_TOKEN"`
		ChatID int64  `env:"TG_CHAT_ID"`
	}
	Server struct {
		Port string `env:"PORT" envDefault:"8080"`
	}
	Database struct {
		Path string `env:"DB_PATH" envDefault:"/data/step-tracker.db"`
	}
	Storage struct {
		HistoryKey  string `env:"HISTORY_KEY" envDefault:"step_history"`
		GoalKey     string `env:"GOAL_KEY" envDefault:"daily_goal"`
		DefaultGoal int    `env:"DEFAULT_GOAL" envDefault:"10000"`
	}
	Tracker struct {
		Timezone         string        `env:"TZ_NAME" envDefault:"Local"`
		StepLengthMeters float64       `env:"STEP_LENGTH_METERS" envDefault:"0.7"`
		RolloverPoll     time.Duration `env:"ROLLOVER_POLL" envDefault:"1m"`
		SummaryCron      string        `env:"SUMMARY_CRON" envDefault:"55 21 * * *"`
	}
	MQTT struct {
		Broker   string `env:"MQTT_BROKER" envDefault:"tcp://localhost:1883"`
		Topic    string `env:"MQTT_TOPIC" envDefault:"steps"`
		ClientID string `env:"MQTT_CLIENT_ID" envDefault:"step-tracker"`
	}
	Log struct {
		Level       string `env:"LOG_LEVEL" envDefault:"info"`
		Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
	}
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Storage.DefaultGoal <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_GOAL must be positive, got %d", c.Storage.DefaultGoal))
	}
	if c.Tracker.StepLengthMeters <= 0 {
		errs = append(errs, fmt.Errorf("STEP_LENGTH_METERS must be positive, got %g", c.Tracker.StepLengthMeters))
	}
	if c.Tracker.RolloverPoll <= 0 {
		errs = append(errs, fmt.Errorf("ROLLOVER_POLL must be positive, got %s", c.Tracker.RolloverPoll))
	}
	if c.Storage.HistoryKey == c.Storage.GoalKey {
		errs = append(errs, errors.New("HISTORY_KEY and GOAL_KEY must differ"))
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("TG_CHAT_ID is required when TG_TOKEN is set"))
	}
	return errors.Join(errs...)
}

// TelegramEnabled reports whether a bot token was configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != ""
}
