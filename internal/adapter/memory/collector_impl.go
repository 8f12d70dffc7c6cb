package memory

import (
	"context"
	"sync"

	"github.com/user/site-auditor/internal/entity"
)

// Collector is a report sink that keeps every event it receives.
type Collector struct {
	mu     sync.Mutex
	events []entity.ReportEvent
}

func NewCollector() *Collector {
	return &Collector{}
}

// Emit implements repository.ReportSink.
func (c *Collector) Emit(_ context.Context, event entity.ReportEvent) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

// Events returns a copy of the collected events in arrival order.
func (c *Collector) Events() []entity.ReportEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.ReportEvent(nil), c.events...)
}

// Failures returns the collected events with status fail.
func (c *Collector) Failures() []entity.ReportEvent {
	var out []entity.ReportEvent
	for _, e := range c.Events() {
		if e.Status == entity.StatusFail {
			out = append(out, e)
		}
	}
	return out
}

// FindByRun implements repository.EventReader.
func (c *Collector) FindByRun(_ context.Context, runID string) ([]entity.ReportEvent, error) {
	var out []entity.ReportEvent
	for _, e := range c.Events() {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}
