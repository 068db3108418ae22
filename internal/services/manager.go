package services

import (
	"step-tracker/internal/daykey"
	"step-tracker/internal/storage"
	"step-tracker/internal/tracker"

	"go.uber.org/zap"
)

// StepSource is the read side of the step aggregator.
type StepSource interface {
	Current() tracker.Update
	History() []storage.Entry
}

type ServiceManager struct {
	Notification *NotificationService
	Analytics    *AnalyticsService
	source       StepSource
	logger       *zap.Logger
}

func NewServiceManager(source StepSource, resolver *daykey.Resolver, stepLengthMeters float64, logger *zap.Logger) *ServiceManager {
	return &ServiceManager{
		Notification: nil,
		Analytics:    NewAnalyticsService(source, resolver, stepLengthMeters),
		source:       source,
		logger:       logger,
	}
}

func (sm *ServiceManager) SetNotificationSender(sender NotificationSender) {
	sm.Notification = NewNotificationService(sender, sm.Analytics, sm.logger)
}
