package entity

import "time"

// EventStatus is the verdict carried by a report event.
type EventStatus string

const (
	StatusPass    EventStatus = "pass"
	StatusFail    EventStatus = "fail"
	StatusWarning EventStatus = "warning"
	StatusInfo    EventStatus = "info"
)

// CheckKind groups report events by the component that produced them.
type CheckKind string

const (
	CheckStatus  CheckKind = "status"
	CheckSitemap CheckKind = "sitemap"
	CheckCrawl   CheckKind = "crawl"
	CheckFact    CheckKind = "fact"
	CheckCTA     CheckKind = "cta"
	CheckBrowser CheckKind = "browser"
)

// ReportEvent is one immutable check result streamed to report sinks.
type ReportEvent struct {
	RunID       string      `json:"run_id"`
	Site        string      `json:"site"`
	Page        string      `json:"page,omitempty"`
	Check       CheckKind   `json:"check"`
	Target      string      `json:"target"`
	Status      EventStatus `json:"status"`
	Message     string      `json:"message"`
	MatchedMode MatchMode   `json:"matched_mode,omitempty"`
	At          time.Time   `json:"at"`
}
