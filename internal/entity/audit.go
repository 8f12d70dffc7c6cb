package entity

import "time"

// RunState is the lifecycle state of an audit run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// AuditRun mirrors the `audit_runs` PostgreSQL table.
type AuditRun struct {
	ID          string       `json:"id"`
	Target      SiteTarget   `json:"target"`
	State       RunState     `json:"state"`
	Summary     *SiteSummary `json:"summary,omitempty"`
	Error       string       `json:"error,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}

// SiteSummary is the final tally of one site's audit.
type SiteSummary struct {
	RunID       string                            `json:"run_id"`
	Site        string                            `json:"site"`
	Totals      map[EventStatus]int               `json:"totals"`
	ByCheck     map[CheckKind]map[EventStatus]int `json:"by_check"`
	Discovered  int                               `json:"discovered"`
	Visited     int                               `json:"visited"`
	Skipped     int                               `json:"skipped"`
	Broken      int                               `json:"broken"`
	Recovered   int                               `json:"recovered"`
	Orphans     int                               `json:"orphans"`
	CTASections map[CTASection]int                `json:"cta_sections"`
	Interrupted bool                              `json:"interrupted"`
	StartedAt   time.Time                         `json:"started_at"`
	FinishedAt  time.Time                         `json:"finished_at"`
}

// NewSiteSummary returns a summary with its maps allocated.
func NewSiteSummary(runID, site string) *SiteSummary {
	return &SiteSummary{
		RunID:       runID,
		Site:        site,
		Totals:      make(map[EventStatus]int),
		ByCheck:     make(map[CheckKind]map[EventStatus]int),
		CTASections: make(map[CTASection]int),
		StartedAt:   time.Now(),
	}
}

// HasFailures reports whether any check failed.
func (s *SiteSummary) HasFailures() bool {
	return s != nil && s.Totals[StatusFail] > 0
}

// BrokenLink mirrors the `broken_links` PostgreSQL table.
type BrokenLink struct {
	ID          int64      `json:"id"`
	Site        string     `json:"site"`
	URL         string     `json:"url"`
	Status      int        `json:"status"`
	Reason      ReasonCode `json:"reason"`
	Message     string     `json:"message"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	Occurrences int        `json:"occurrences"`
}
