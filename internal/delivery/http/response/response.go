package response

import (
	"time"

	"github.com/user/site-auditor/internal/entity"
)

type SubmitAuditResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// AuditStatusResponse is a DTO for an audit run, mirroring entity.AuditRun
// without credentials.
type AuditStatusResponse struct {
	RunID       string              `json:"run_id"`
	Website     string              `json:"website"`
	State       string              `json:"state"` // "pending", "running", "completed", "failed"
	Summary     *entity.SiteSummary `json:"summary,omitempty"`
	Error       string              `json:"error,omitempty"`
	SubmittedAt time.Time           `json:"submitted_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}

type AuditEventsResponse struct {
	RunID  string               `json:"run_id"`
	Events []entity.ReportEvent `json:"events"`
}
