package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"go.uber.org/zap"
)

func newEvent(page string, check entity.CheckKind, target string, status entity.EventStatus, message string) entity.ReportEvent {
	return entity.ReportEvent{
		Page:    page,
		Check:   check,
		Target:  target,
		Status:  status,
		Message: message,
		At:      time.Now(),
	}
}

// statusEvent turns a reachability result into a report event. Recovered
// URLs pass with a distinct message; unchecked URLs are warnings.
func statusEvent(page string, res entity.ValidationResult) entity.ReportEvent {
	switch {
	case res.Recovered:
		return newEvent(page, entity.CheckStatus, res.URL, entity.StatusPass,
			fmt.Sprintf("recovered: %d via %s (%s)", res.Status, res.Method, res.Message))
	case res.OK():
		return newEvent(page, entity.CheckStatus, res.URL, entity.StatusPass,
			fmt.Sprintf("%d via %s", res.Status, res.Method))
	case res.Interrupted:
		return newEvent(page, entity.CheckStatus, res.URL, entity.StatusWarning, res.Message)
	case res.Status > 0:
		return newEvent(page, entity.CheckStatus, res.URL, entity.StatusFail,
			fmt.Sprintf("broken: HTTP %d", res.Status))
	default:
		return newEvent(page, entity.CheckStatus, res.URL, entity.StatusFail,
			fmt.Sprintf("broken: %s (%d): %s", res.Reason, res.Status, res.Message))
	}
}

// emit forwards event to sink. Emission survives run cancellation so that
// results computed before the deadline are still reported.
func emit(ctx context.Context, sink repository.ReportSink, logger *zap.Logger, event entity.ReportEvent) {
	if sink == nil {
		return
	}
	if err := sink.Emit(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("report event dropped",
			zap.String("check", string(event.Check)),
			zap.String("target", event.Target),
			zap.Error(err))
	}
}
