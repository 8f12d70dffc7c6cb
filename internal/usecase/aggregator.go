package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/site-auditor/internal/entity"
	"github.com/user/site-auditor/internal/repository"
	"github.com/user/site-auditor/pkg/metrics"
	"go.uber.org/zap"
)

var ErrAggregatorClosed = errors.New("report aggregator is closed")

// Aggregator is the single writer of a site's report. Producers call Emit
// from any goroutine; one goroutine stamps each event, updates the tally and
// forwards the event to every sink in arrival order.
type Aggregator struct {
	runID string
	site  string
	sinks []repository.ReportSink

	events  chan entity.ReportEvent
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	summary *entity.SiteSummary
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAggregator starts the aggregation goroutine for one site run.
func NewAggregator(runID, site string, sinks []repository.ReportSink, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		runID:   runID,
		site:    site,
		sinks:   sinks,
		events:  make(chan entity.ReportEvent),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		summary: entity.NewSiteSummary(runID, site),
		metrics: m,
		logger:  logger.With(zap.String("run_id", runID), zap.String("site", site)),
	}
	go a.run()
	return a
}

// Emit implements repository.ReportSink.
func (a *Aggregator) Emit(ctx context.Context, event entity.ReportEvent) error {
	select {
	case <-a.quit:
		return ErrAggregatorClosed
	default:
	}
	select {
	case a.events <- event:
		return nil
	case <-a.quit:
		return ErrAggregatorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and returns the final summary. It is safe to
// call more than once.
func (a *Aggregator) Close() *entity.SiteSummary {
	a.once.Do(func() {
		close(a.quit)
		<-a.stopped
		a.summary.FinishedAt = time.Now()
	})
	return a.summary
}

func (a *Aggregator) run() {
	defer close(a.stopped)
	for {
		select {
		case ev := <-a.events:
			a.handle(ev)
		case <-a.quit:
			return
		}
	}
}

func (a *Aggregator) handle(ev entity.ReportEvent) {
	if ev.RunID == "" {
		ev.RunID = a.runID
	}
	if ev.Site == "" {
		ev.Site = a.site
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	a.summary.Totals[ev.Status]++
	byStatus := a.summary.ByCheck[ev.Check]
	if byStatus == nil {
		byStatus = make(map[entity.EventStatus]int)
		a.summary.ByCheck[ev.Check] = byStatus
	}
	byStatus[ev.Status]++
	a.metrics.IncReportEvent(string(ev.Check), string(ev.Status))

	ctx := context.Background()
	for _, sink := range a.sinks {
		if err := sink.Emit(ctx, ev); err != nil {
			a.logger.Warn("report sink failed",
				zap.String("check", string(ev.Check)),
				zap.String("target", ev.Target),
				zap.Error(err))
		}
	}
}
