package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/email"
	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
	"github.com/jwalitptl/careflow-api/pkg/logger"
	"github.com/jwalitptl/careflow-api/pkg/messaging"
)

// channelPattern matches every domain event published by the outbox
// worker (consent.*, referral.*, consultation.*, and so on).
const channelPattern = "*.*"

// Consumer turns published transition events into patient emails.
// Delivery is best effort end to end: the transition committed long
// before this runs, and a failed send is logged, never retried against
// the domain.
type Consumer struct {
	broker messaging.Broker
	users  repository.UserRepository
	sender email.Sender
	logger *logger.Logger
}

func NewConsumer(broker messaging.Broker, users repository.UserRepository, sender email.Sender, logger *logger.Logger) *Consumer {
	return &Consumer{
		broker: broker,
		users:  users,
		sender: sender,
		logger: logger,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	messages, err := c.broker.Subscribe(ctx, channelPattern)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.logger.Info("starting notification consumer")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("shutting down notification consumer")
			return nil
		case payload, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, payload)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, payload []byte) {
	var event model.TransitionEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logger.Warn("dropping undecodable event", "error", err.Error())
		return
	}
	if event.PatientID == uuid.Nil {
		return
	}

	user, err := c.users.Get(ctx, event.PatientID)
	if err != nil {
		c.logger.Warn("no directory entry for notification recipient",
			"patient_id", event.PatientID.String(), "error", err.Error())
		return
	}
	if user.Email == "" {
		return
	}

	subject, body := render(&event, user)
	if err := c.sender.Send(ctx, user.Email, subject, body); err != nil {
		c.logger.Error(err, "failed to deliver notification",
			"entity", event.Entity, "business_id", event.BusinessID)
	}
}

func render(event *model.TransitionEvent, user *model.DirectoryUser) (subject, body string) {
	subject = fmt.Sprintf("Update on your %s %s", event.Entity, event.BusinessID)
	body = fmt.Sprintf(
		"<p>Hello %s,</p><p>Your %s <b>%s</b> is now <b>%s</b>.</p>",
		user.Name, event.Entity, event.BusinessID, event.To,
	)
	return subject, body
}
