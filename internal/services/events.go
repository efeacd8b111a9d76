package services

import (
	"time"

	"careportal/internal/models"

	"go.uber.org/zap"
)

// EventPublisher publishes account lifecycle events to a message broker.
type EventPublisher interface {
	PublishAccountEvent(event models.AccountEvent) error
}

// publishAccountEvent sends an event if a publisher is configured. Failures
// are logged and never fail the caller.
func publishAccountEvent(publisher EventPublisher, logger *zap.Logger, eventType string, account *models.UserAccount) {
	if publisher == nil {
		return
	}
	event := models.AccountEvent{
		Type:       eventType,
		AccountID:  account.ID,
		Username:   account.Username,
		Role:       account.Role,
		OccurredAt: time.Now().UTC(),
	}
	if err := publisher.PublishAccountEvent(event); err != nil {
		logger.Warn("failed to publish account event",
			zap.String("type", eventType),
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}
}
