package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
	"github.com/jwalitptl/careflow-api/internal/repository"
)

// Service writes domain events to the outbox. Events ride the same
// transaction as the write that produced them when a unit of work is
// running, so a rolled-back transition never leaks a notification.
// Delivery to the broker happens asynchronously in the worker.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// EmitTransition records a status change with the shared payload shape.
func (s *Service) EmitTransition(ctx context.Context, eventType, entity, businessID, from, to string, actorID, patientID uuid.UUID) error {
	return s.Emit(ctx, eventType, model.TransitionEvent{
		Entity:     entity,
		BusinessID: businessID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		PatientID:  patientID,
		OccurredAt: time.Now().UTC(),
	})
}
