package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"step-tracker/internal/api"
	"step-tracker/internal/config"
	"step-tracker/internal/database"
	"step-tracker/internal/daykey"
	"step-tracker/internal/sensor"
	"step-tracker/internal/services"
	"step-tracker/internal/storage"
	"step-tracker/internal/telegram"
	"step-tracker/internal/tracker"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Application struct {
	config     *config.Config
	db         *database.Database
	sensor     *sensor.MQTT
	tracker    *tracker.Aggregator
	bot        *telegram.Bot
	services   *services.ServiceManager
	cron       *cron.Cron
	server     *http.Server
	logger     *zap.Logger
	cancelFunc context.CancelFunc
	ctx        context.Context
}

func New(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	resolver, err := daykey.Load(cfg.Tracker.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, using local zone", zap.Error(err))
	}

	db, err := database.New(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	slot := database.NewRepository(db)
	opts := storage.Options{
		HistoryKey:  cfg.Storage.HistoryKey,
		GoalKey:     cfg.Storage.GoalKey,
		DefaultGoal: cfg.Storage.DefaultGoal,
	}
	history := storage.NewHistoryStore(slot, opts, logger.Named("history"))
	goals := storage.NewGoalStore(slot, opts, logger.Named("goal"))

	pedometer := sensor.NewMQTT(sensor.MQTTConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Topic:    cfg.MQTT.Topic,
	}, logger.Named("sensor"))

	agg := tracker.New(resolver, history, goals, pedometer, tracker.Options{Logger: logger.Named("tracker")})
	serviceManager := services.NewServiceManager(agg, resolver, cfg.Tracker.StepLengthMeters, logger.Named("services"))

	var bot *telegram.Bot
	if cfg.TelegramEnabled() {
		bot, err = telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.ChatID, agg, serviceManager, resolver.Location(), logger.Named("telegram"))
		if err != nil {
			db.Close()
			return nil, err
		}
		serviceManager.SetNotificationSender(bot)
	} else {
		logger.Info("telegram disabled, notifications go to the log")
		serviceManager.SetNotificationSender(services.LogSender{Logger: logger.Named("notify")})
	}
	agg.OnUpdate(serviceManager.Notification.HandleUpdate)

	scheduler, err := newScheduler(agg, serviceManager.Notification, resolver.Location(),
		cfg.Tracker.RolloverPoll, cfg.Tracker.SummaryCron, logger.Named("cron"))
	if err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:   cfg,
		db:       db,
		sensor:   pedometer,
		tracker:  agg,
		bot:      bot,
		services: serviceManager,
		cron:     scheduler,
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           api.NewRouter(api.NewHandler(serviceManager.Analytics, agg, logger.Named("api"))),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:     logger,
		cancelFunc: cancel,
		ctx:        ctx,
	}

	return app, nil
}

func (a *Application) Start() error {
	a.logger.Info("starting step tracker")

	// A broker that is down now is retried by the client and by the poll job.
	if err := a.sensor.Connect(a.ctx); err != nil {
		a.logger.Warn("pedometer broker not reachable yet", zap.Error(err))
	}

	if err := a.tracker.Start(a.ctx); err != nil {
		return err
	}

	if a.bot != nil {
		go a.bot.Start(a.ctx)
	}

	a.cron.Start()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", zap.Error(err))
		}
	}()

	cur := a.tracker.Current()
	a.logger.Info("step tracker started",
		zap.String("date", cur.Day.String()),
		zap.Int("steps", cur.Steps),
		zap.String("state", cur.State.String()),
		zap.String("port", a.config.Server.Port))

	return nil
}

func (a *Application) Stop() error {
	a.logger.Info("stopping step tracker")

	a.cancelFunc()
	<-a.cron.Stop().Done()
	a.tracker.Stop()
	a.sensor.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown failed", zap.Error(err))
	}

	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}

	a.logger.Info("step tracker stopped")
	return nil
}
