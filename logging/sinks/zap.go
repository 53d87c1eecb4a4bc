package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"coupdegrace/server/logging"
)

// Zap forwards events to a zap logger, mapping event severity onto zap levels.
type Zap struct {
	logger *zap.Logger
}

func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

func (s *Zap) Write(event logging.Event) error {
	fields := make([]zap.Field, 0, 7)
	fields = append(fields,
		zap.Uint64("tick", event.Tick),
		zap.Time("time", event.Time),
		zap.String("category", event.Category),
		zap.String("actor", formatEntity(event.Actor)),
	)
	if len(event.Targets) > 0 {
		ids := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			ids = append(ids, formatEntity(target))
		}
		fields = append(fields, zap.Strings("targets", ids))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}
	if ce := s.logger.Check(zapLevel(event.Severity), string(event.Type)); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

// Close syncs the logger. Sync fails with EINVAL on terminals, so the error
// is dropped.
func (s *Zap) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}

func zapLevel(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
