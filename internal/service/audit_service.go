package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/candidate-identity-service/internal/events"
)

// AuditService records lifecycle events for operational visibility. Handlers
// never fail the publishing operation.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to lifecycle events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventCandidateRegistered, a.handle)
	a.dispatcher.Subscribe(events.EventCandidateVerified, a.handle)
	a.dispatcher.Subscribe(events.EventCandidateAuthenticated, a.handle)
	a.dispatcher.Subscribe(events.EventPasswordReset, a.handle)
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	a.logger.Info("lifecycle event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Int64("candidate_id", event.CandidateID),
		zap.Any("payload", event.Payload))
	return nil
}
