// Package events raises audit events and dispatches them to the configured sinks.
package events

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
)

// Service raises events enabled by the options.
type Service struct {
	options domain.EventsOptions
	sinks   []domain.EventSink
	clock   domain.Clock
	logger  *zap.Logger
}

// NewService creates an event service dispatching to sinks
func NewService(options domain.EventsOptions, clock domain.Clock, logger *zap.Logger, sinks ...domain.EventSink) *Service {
	return &Service{
		options: options,
		sinks:   sinks,
		clock:   clock,
		logger:  logger,
	}
}

// CanRaise reports whether events of eventType are switched on
func (s *Service) CanRaise(eventType string) bool {
	switch eventType {
	case domain.EventTypeSuccess:
		return s.options.RaiseSuccessEvents
	case domain.EventTypeFailure:
		return s.options.RaiseFailureEvents
	case domain.EventTypeInformation:
		return s.options.RaiseInformationEvents
	case domain.EventTypeError:
		return s.options.RaiseErrorEvents
	}
	return false
}

// Raise stamps the event and hands it to every sink. Sink failures are logged, never returned.
func (s *Service) Raise(ctx context.Context, event *domain.Event) {
	if s == nil || event == nil || !s.CanRaise(event.EventType) {
		return
	}

	event.ID = domain.NewID()
	event.TimeStamp = s.clock.Now()
	if requestID, ok := domain.GetRequestID(ctx); ok {
		event.ActivityID = requestID
	}
	event.RemoteIP = domain.GetRemoteIP(ctx)

	for _, sink := range s.sinks {
		if err := sink.Persist(ctx, event); err != nil {
			s.logger.Error("Failed to persist event",
				zap.String("event", event.Name),
				zap.Int("event_id", event.EventID),
				zap.Error(err))
		}
	}
}
