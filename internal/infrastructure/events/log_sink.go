package events

import (
	"context"

	"github.com/manorfm/identityserver/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink writes events to the application log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging through logger
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("events")}
}

// Persist logs the event; failures and errors are logged at warn level
func (s *LogSink) Persist(_ context.Context, event *domain.Event) error {
	level := zapcore.InfoLevel
	switch event.EventType {
	case domain.EventTypeFailure:
		level = zapcore.WarnLevel
	case domain.EventTypeError:
		level = zapcore.ErrorLevel
	}

	fields := []zap.Field{
		zap.String("id", event.ID),
		zap.Int("event_id", event.EventID),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Time("timestamp", event.TimeStamp),
	}
	if event.ClientID != "" {
		fields = append(fields, zap.String("client_id", event.ClientID))
	}
	if event.SubjectID != "" {
		fields = append(fields, zap.String("sub", event.SubjectID))
	}
	if event.Endpoint != "" {
		fields = append(fields, zap.String("endpoint", event.Endpoint))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	if len(event.Scopes) > 0 {
		fields = append(fields, zap.Strings("scopes", event.Scopes))
	}
	if event.ActivityID != "" {
		fields = append(fields, zap.String("request_id", event.ActivityID))
	}
	if event.RemoteIP != "" {
		fields = append(fields, zap.String("remote_ip", event.RemoteIP))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String(k, v))
	}

	if ce := s.logger.Check(level, event.Name); ce != nil {
		ce.Write(fields...)
	}
	return nil
}
