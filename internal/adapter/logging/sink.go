package logging

import (
	"context"

	"github.com/user/site-auditor/internal/entity"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink mirrors report events into the structured log. Failures log at
// warn, warnings at info and everything else at debug.
type Sink struct {
	logger *zap.Logger
}

func NewSink(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger.Named("report")}
}

// Emit implements repository.ReportSink.
func (s *Sink) Emit(_ context.Context, event entity.ReportEvent) error {
	level := zapcore.DebugLevel
	switch event.Status {
	case entity.StatusFail:
		level = zapcore.WarnLevel
	case entity.StatusWarning:
		level = zapcore.InfoLevel
	}
	ce := s.logger.Check(level, event.Message)
	if ce == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("run_id", event.RunID),
		zap.String("site", event.Site),
		zap.String("check", string(event.Check)),
		zap.String("status", string(event.Status)),
		zap.String("target", event.Target),
	}
	if event.Page != "" {
		fields = append(fields, zap.String("page", event.Page))
	}
	if event.MatchedMode != "" {
		fields = append(fields, zap.String("matched_mode", string(event.MatchedMode)))
	}
	ce.Write(fields...)
	return nil
}
